// internal/workers/pipeline/extract-command/rules.go
package extractcommand

import (
	"regexp"

	"command-pipeline/internal/models"
)

type intentRule struct {
	intent  models.IntentKind
	pattern *regexp.Regexp
}

// intentRules are evaluated in order against folded text; the first match
// wins. Service requests are also recognised from a detected failure type.
var intentRules = []intentRule{
	{models.IntentCancelAppointment, regexp.MustCompile(`\bcancel`)},
	{models.IntentRescheduleAppointment, regexp.MustCompile(`\breschedul|\b(?:move|change|push back) my appointment|\bdifferent (?:day|time) for my appointment`)},
	{models.IntentBillingInquiry, regexp.MustCompile(`\binvoice|\bbilling\b|\bmy bill\b|\bthe bill\b|\bbalance\b|\bcharged\b|\breceipt\b|\bpay my bill`)},
	{models.IntentPaymentTermsInquiry, regexp.MustCompile(`\bpayment terms|\bpayment plan|\blate fee|\bnet \d+\b|\bterms of payment|\bhow long (?:do i have )?to pay`)},
	{models.IntentPayrollInquiry, regexp.MustCompile(`\bpayroll|\bpaycheck|\bpay ?stub|\bdirect deposit|\bw-?2\b|\bmy wages\b|\bovertime pay`)},
	{models.IntentOnboardingInquiry, regexp.MustCompile(`\bonboarding|\bfirst day\b|\borientation\b|\bnew hire\b|\bstart date\b`)},
	{models.IntentHiringInquiry, regexp.MustCompile(`\bhiring\b|\bjob openings?\b|\bapply for\b|\bapplying\b|\bcareers?\b|\bpositions? open|\bopen positions?|\blooking for (?:a )?(?:job|work)\b|\bemployment\b`)},
	{models.IntentQuoteRequest, regexp.MustCompile(`\bquote\b|\bestimate\b|\bpricing\b|\bhow much (?:for|would|does|will|is|to)\b|\breplace(?:ment)? (?:my |the |our )?(?:system|unit|ac|a/c|furnace|heat pump|air conditioner)|\bnew (?:ac|a/c|air conditioner|furnace|system|heat pump|hvac|unit|boiler|water heater)\b|\binstall(?:ation)?\b|\bupgrade\b`)},
	{models.IntentServiceRequest, regexp.MustCompile(`\brepair\b|\bfix\b|\bbroken\b|\bnot working\b|\bisn't working\b|\bstopped working\b|\bservice call\b|\bsend (?:someone|a tech|a technician)\b`)},
	{models.IntentScheduleAppointment, regexp.MustCompile(`\bschedule\b|\bappointment\b|\bbook\b|\btune[- ]?up\b|\bmaintenance\b|\bcheck[- ]?up\b|\binspection\b`)},
}

type failureRule struct {
	failure string
	pattern *regexp.Regexp
}

// Safety phrases force emergency regardless of intent.
var safetyRules = []failureRule{
	{models.FailureGasLeak, regexp.MustCompile(`\bgas leak|\bleaking gas|\bsmell(?:s|ing)? (?:of |like )?gas\b|\bgas smell|\brotten eggs?\b`)},
	{models.FailureCarbonMonoxide, regexp.MustCompile(`\bcarbon monoxide|\bco (?:alarm|detector)`)},
	{models.FailureElectricalHazard, regexp.MustCompile(`\bspark(?:s|ed|ing)?\b|\bburning smell|\bsmell(?:s|ing)? (?:like )?burning|\bsmoke\b|\bsmoking\b`)},
}

const brokenStates = `(?:is |has |just |keeps )?(?:out|broken|broke|dead|died|down|stopped working|not working|quit|isn't working|won't turn on|went out|stopped)`

var failureRules = []failureRule{
	{models.FailureNoHeat, regexp.MustCompile(`\bno heat\b|\b(?:heater|furnace|heat pump|heating|heat)\s+` + brokenStates + `\b|\bnot heating\b|\bwon't heat\b|\bno hot air\b|\bblowing cold air\b`)},
	{models.FailureNoCooling, regexp.MustCompile(`\bno (?:ac|a/c|air conditioning|cooling|cold air)\b|\b(?:ac|a/c|air conditioner|air conditioning|cooling)\s+` + brokenStates + `\b|\bnot cooling\b|\bwon't cool\b|\bblowing (?:hot|warm) air\b`)},
	{models.FailureWaterLeak, regexp.MustCompile(`\bwater leak|\bleaking water|\bleaking\b|\bdripping\b|\bwater (?:on|under) the\b`)},
	{models.FailureNoise, regexp.MustCompile(`\bnois(?:e|y)\b|\brattl|\bsqueal|\bbanging\b|\bgrinding\b`)},
}

var generalProblem = regexp.MustCompile(`\brepair\b|\bfix\b|\bbroken\b|\bnot working\b|\bisn't working\b|\bstopped working\b|\bproblem with\b|\bissue with\b`)

var (
	temperaturePattern = regexp.MustCompile(`(-?\d{1,3})\s*(?:°\s*|degrees?\s*|deg\s+)(?:(fahrenheit|celsius|f|c)\b)?`)
	clauseBreak        = regexp.MustCompile(`[,;!?]+|\.(?:\s|$)|\s+(?:and|but|while|though|although|whereas)\s+`)
	indoorMarker       = regexp.MustCompile(`\binside\b|\bin here\b|\bin the (?:house|home|room|apartment|building|basement|bedroom|kitchen|office)\b|\bindoors?\b|\binterior\b`)
	outdoorMarker      = regexp.MustCompile(`\boutside\b|\boutdoors?\b|\bout there\b|\bforecast|\bhigh of\b|\blow of\b|\bweather\b`)
	setpointMarker     = regexp.MustCompile(`\bset (?:to|at|for)\b|\bthermostat\b|\bsetting\b|\bsetpoint\b`)
	negationTail       = regexp.MustCompile(`\b(?:no|not|never|without|don't|doesn't|didn't|isn't|aren't|wasn't|haven't|hasn't|nor)\b(?:\s+[\w']+){0,3}\s*$`)
	phonePattern       = regexp.MustCompile(`(?:^|[^\w])(\+?1[\s.-]?)?\(?(\d{3})\)?[\s.-]?(\d{3})[\s.-]?(\d{4})(?:$|[^\d])`)
	emailPattern       = regexp.MustCompile(`[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`)
	namePattern        = regexp.MustCompile(`(?i)\b(?:name is|name's)\s+([a-z][a-z'-]*(?:\s+[a-z][a-z'-]*){0,2})`)
	streetPattern      = regexp.MustCompile(`(?i)\b(\d{1,6}\s+(?:[a-z0-9.'-]+\s+){0,4}?(?:street|st|avenue|ave|road|rd|drive|dr|lane|ln|boulevard|blvd|court|ct|way|circle|cir|parkway|pkwy|place|pl|trail|trl|highway|hwy|terrace|ter)\b\.?)`)
	zipPattern         = regexp.MustCompile(`\b(\d{5})(?:-\d{4})?\b`)
	zipOnlyPattern     = regexp.MustCompile(`(?i)\b(?:zip|zip code|zipcode|postal code)\s*(?:is\s*)?(\d{5})\b`)
	squareFeetPattern  = regexp.MustCompile(`(\d{1,3}(?:,\d{3})+|\d{3,5})\s*(?:sq\.?\s*(?:ft|feet|foot)\b|square\s*(?:feet|foot|ft)\b|sqft\b)`)
	ageYearsPattern    = regexp.MustCompile(`(\d{1,3})\s*(?:years?|yrs?)\s*old\b`)
	budgetPattern      = regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})+|\d+)(k\b)?|\b(\d{1,4})k\b|\bbudget (?:is |of |around |about )?(\d{1,3}(?:,\d{3})+|\d{4,})\b`)
	financingPattern   = regexp.MustCompile(`\bfinanc(?:e|ing)\b|\bmonthly payments?\b|\bpayment plan\b`)
	appointmentPattern = regexp.MustCompile(`(?i)\b(?:appointment|appt|confirmation)\s*(?:number|no\.?|#|id)?\s*(?:is\s*)?#?\s*([a-z]{0,4}-?\d{3,10})\b`)
	invoicePattern     = regexp.MustCompile(`(?i)\binvoice\s*(?:number|no\.?|#)?\s*(?:is\s*)?#?\s*([a-z]{0,4}-?\d{3,10})\b`)
	employeePattern    = regexp.MustCompile(`(?i)\bemployee\s*(?:id|number|no\.?|#)\s*(?:is\s*)?#?\s*([a-z]{0,4}-?\d{2,10})\b`)
)

type phraseRule struct {
	value   string
	pattern *regexp.Regexp
}

var urgencyRules = []struct {
	level   models.UrgencyLevel
	pattern *regexp.Regexp
}{
	{models.UrgencyToday, regexp.MustCompile(`\btoday\b|\basap\b|\bas soon as possible\b|\bright away\b|\bright now\b|\bemergency\b|\burgent`)},
	{models.UrgencyThisWeek, regexp.MustCompile(`\bthis week\b|\bin the next few days\b|\bby friday\b`)},
	{models.UrgencyFlexible, regexp.MustCompile(`\bno rush\b|\bflexible\b|\bwhenever\b|\bnot urgent\b|\bany ?time\b`)},
}

var timelineRules = []phraseRule{
	{models.TimelineImmediate, regexp.MustCompile(`\bimmediately\b|\bright away\b|\basap\b|\bas soon as possible\b|\bright now\b`)},
	{models.TimelineThisWeek, regexp.MustCompile(`\bthis week\b|\bwithin (?:a|the) week\b`)},
	{models.TimelineThisMonth, regexp.MustCompile(`\bthis month\b|\bwithin (?:a|the) month\b|\bnext (?:few|couple(?: of)?) weeks\b`)},
	{models.TimelineWithinMonths, regexp.MustCompile(`\b(?:next|within|in) (?:2|3|two|three|a few|couple(?: of)?) months\b|\bthis (?:spring|summer|fall|winter)\b|\bbefore (?:summer|winter)\b`)},
	{models.TimelineResearching, regexp.MustCompile(`\bjust (?:looking|researching|browsing|curious)\b|\bresearching\b|\bnext year\b|\bsomeday\b|\bno timeline\b`)},
}

var systemTypeRules = []phraseRule{
	{"heat_pump", regexp.MustCompile(`\bheat pump`)},
	{"mini_split", regexp.MustCompile(`\bmini[- ]?split|\bductless\b`)},
	{"water_heater", regexp.MustCompile(`\bwater heater|\btankless\b`)},
	{"boiler", regexp.MustCompile(`\bboiler`)},
	{"furnace", regexp.MustCompile(`\bfurnace|\bheater\b`)},
	{"air_conditioner", regexp.MustCompile(`\bac\b|\ba/c\b|\bair condition|\bcentral air\b|\bcooling system\b`)},
}

var propertyTypeRules = []phraseRule{
	{"commercial", regexp.MustCompile(`\bcommercial\b|\boffice\b|\bwarehouse\b|\bstore\b|\brestaurant\b`)},
	{"apartment", regexp.MustCompile(`\bapartment\b|\bcondo\b|\bunit \d`)},
	{"townhouse", regexp.MustCompile(`\btownhouse\b|\btownhome\b`)},
	{"mobile_home", regexp.MustCompile(`\bmobile home\b|\bmanufactured home\b|\btrailer\b`)},
	{"single_family", regexp.MustCompile(`\bhouse\b|\bhome\b|\bsingle[- ]family\b`)},
}

var preferredDatePattern = regexp.MustCompile(`\b(today|tomorrow|this weekend|next week|(?:next |this )?(?:monday|tuesday|wednesday|thursday|friday|saturday|sunday)(?: (?:morning|afternoon|evening))?|\d{1,2}/\d{1,2}(?:/\d{2,4})?|(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]* \d{1,2}(?:st|nd|rd|th)?)\b`)

var customerTierPattern = regexp.MustCompile(`\b(commercial|preferred) (?:account|customer|plan)\b|\bmaintenance (?:plan|agreement) member\b`)

var nameStopWords = map[string]bool{
	"and": true, "i": true, "i'm": true, "my": true, "at": true, "from": true, "calling": true,
	"the": true, "phone": true, "number": true, "in": true, "on": true, "with": true, "here": true,
	"about": true, "because": true, "is": true, "it's": true, "we": true, "our": true,
}

var usStates = map[string]string{
	"al": "AL", "ak": "AK", "az": "AZ", "ar": "AR", "ca": "CA", "co": "CO", "ct": "CT", "de": "DE",
	"fl": "FL", "ga": "GA", "hi": "HI", "id": "ID", "il": "IL", "ia": "IA", "ks": "KS",
	"ky": "KY", "la": "LA", "me": "ME", "md": "MD", "ma": "MA", "mi": "MI", "mn": "MN", "ms": "MS",
	"mo": "MO", "mt": "MT", "ne": "NE", "nv": "NV", "nh": "NH", "nj": "NJ", "nm": "NM", "ny": "NY",
	"nc": "NC", "nd": "ND", "oh": "OH", "ok": "OK", "or": "OR", "pa": "PA", "ri": "RI", "sc": "SC",
	"sd": "SD", "tn": "TN", "tx": "TX", "ut": "UT", "vt": "VT", "va": "VA", "wa": "WA", "wv": "WV",
	"wi": "WI", "wy": "WY",
	"texas": "TX", "oklahoma": "OK", "louisiana": "LA", "arkansas": "AR", "new mexico": "NM",
}
