// internal/workers/pipeline/extract-command/extractor.go
package extractcommand

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"command-pipeline/internal/common/policy"
	"command-pipeline/internal/models"
)

var apostrophes = strings.NewReplacer("’", "'", "‘", "'", "ʼ", "'", "`", "'", "“", `"`, "”", `"`)

type roleMatcher struct {
	id      string
	pattern *regexp.Regexp
}

// Extractor turns raw text plus hints into a Command. It holds only
// read-only rule tables and is safe for concurrent use.
type Extractor struct {
	policy *policy.Policy
	roles  []roleMatcher
}

func NewExtractor(p *policy.Policy) *Extractor {
	e := &Extractor{policy: p}
	for _, role := range p.People.Roles {
		terms := make([]string, 0, len(role.Keywords)+1)
		terms = append(terms, regexp.QuoteMeta(strings.ToLower(role.Title)))
		for _, kw := range role.Keywords {
			terms = append(terms, regexp.QuoteMeta(strings.ToLower(kw)))
		}
		e.roles = append(e.roles, roleMatcher{
			id:      role.ID,
			pattern: regexp.MustCompile(`\b(?:` + strings.Join(terms, "|") + `)s?\b`),
		})
	}
	return e
}

// Extract never fails. Text it cannot classify yields IntentUnknown with
// whatever entities parsed cleanly.
func (e *Extractor) Extract(req models.CommandRequest) models.Command {
	clean := cleanText(req.RawText)
	folded := cases.Fold().String(clean)

	var bag models.EntityBag

	failure, safety := detectFailure(folded)
	bag.FailureType = failure
	if failure != "" {
		bag.ProblemDescription = clean
	}
	bag.IndoorTemperatureF = parseTemperature(folded)

	bag.Identity = extractIdentity(clean, folded)
	bag.Location = parseAddress(clean)
	if sqft, ok := firstInt(squareFeetPattern, folded); ok {
		bag.Property = &models.PropertyDetails{SquareFeet: &sqft}
	}
	if ptype := firstPhrase(propertyTypeRules, folded); ptype != "" {
		if bag.Property == nil {
			bag.Property = &models.PropertyDetails{}
		}
		bag.Property.Type = ptype
	}
	if age, ok := firstInt(ageYearsPattern, folded); ok {
		bag.SystemAgeYears = &age
	}
	bag.SystemType = firstPhrase(systemTypeRules, folded)
	bag.Timeline = firstPhrase(timelineRules, folded)
	bag.BudgetUSD = parseBudget(folded)
	bag.Financing = financingPattern.MatchString(folded)
	bag.AppointmentID = firstGroup(appointmentPattern, clean, strings.ToUpper)
	bag.InvoiceNumber = firstGroup(invoicePattern, clean, strings.ToUpper)
	bag.EmployeeID = firstGroup(employeePattern, clean, strings.ToUpper)
	bag.PreferredDate = firstGroup(preferredDatePattern, folded, nil)
	if m := customerTierPattern.FindStringSubmatch(folded); m != nil {
		bag.CustomerTier = "preferred"
		if m[1] != "" {
			bag.CustomerTier = m[1]
		}
	}
	bag.Urgency = detectUrgency(folded)

	intent := classify(folded, failure)
	if intent == models.IntentUnknown && req.Context != nil && req.Context.ActiveIntent.Valid() {
		intent = req.Context.ActiveIntent
	}
	switch intent {
	case models.IntentHiringInquiry, models.IntentOnboardingInquiry, models.IntentPayrollInquiry:
		bag.Role = e.matchRole(folded)
	}

	applyHints(&bag, req.Hints)
	applyCallerIdentity(&bag, req.CallerIdentityHint)

	if bag.FailureType == "" && intent == models.IntentServiceRequest && generalProblem.MatchString(folded) {
		bag.FailureType = models.FailureGeneral
		bag.ProblemDescription = clean
	}

	// Emergency qualification runs after hints so a structured temperature
	// still pairs with a failure phrase from the text.
	if safety {
		if _, reason := e.policy.Emergency.Qualifies(bag.FailureType, nil); reason != "" {
			bag.EmergencyReason = reason
		}
		bag.Urgency = models.UrgencyEmergency
	} else if bag.FailureType != "" {
		if ok, reason := e.policy.Emergency.Qualifies(bag.FailureType, bag.IndoorTemperatureF); ok {
			bag.Urgency = models.UrgencyEmergency
			bag.EmergencyReason = reason
		}
	}

	return models.Command{
		Intent:   intent,
		Entities: bag,
		Channel:  req.Channel,
		RawText:  req.RawText,
	}
}

func cleanText(s string) string {
	s = norm.NFKC.String(s)
	s = apostrophes.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func classify(folded, failure string) models.IntentKind {
	for _, rule := range intentRules {
		if rule.pattern.MatchString(folded) {
			return rule.intent
		}
		if rule.intent == models.IntentServiceRequest && failure != "" {
			return rule.intent
		}
	}
	return models.IntentUnknown
}

// detectFailure reports the failure type and whether it came from a safety
// phrase.
func detectFailure(folded string) (string, bool) {
	for _, rule := range safetyRules {
		if assertedSafety(rule.pattern, folded) {
			return rule.failure, true
		}
	}
	for _, rule := range failureRules {
		if rule.pattern.MatchString(folded) {
			return rule.failure, false
		}
	}
	return "", false
}

// assertedSafety reports whether a safety phrase appears in some clause
// without a negation in the few words before it ("no smoke", "don't smell
// gas").
func assertedSafety(pattern *regexp.Regexp, folded string) bool {
	for _, clause := range clauseBreak.Split(folded, -1) {
		for _, loc := range pattern.FindAllStringIndex(clause, -1) {
			if !negationTail.MatchString(clause[:loc[0]]) {
				return true
			}
		}
	}
	return false
}

func detectUrgency(folded string) models.UrgencyLevel {
	for _, rule := range urgencyRules {
		if rule.pattern.MatchString(folded) {
			return rule.level
		}
	}
	return ""
}

// parseTemperature returns the indoor temperature in Fahrenheit. Readings
// in clauses about the outdoors or a thermostat setting are ignored. A
// reading tied to an indoor marker wins over an unmarked one; when the
// remaining readings disagree the result is nil. Words alone never produce
// a value.
func parseTemperature(folded string) *int {
	var indoor, neutral []int
	for _, clause := range clauseBreak.Split(folded, -1) {
		if outdoorMarker.MatchString(clause) || setpointMarker.MatchString(clause) {
			continue
		}
		isIndoor := indoorMarker.MatchString(clause)
		for _, m := range temperaturePattern.FindAllStringSubmatch(clause, -1) {
			v, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			if m[2] == "c" || m[2] == "celsius" {
				v = int(math.Round(float64(v)*9/5 + 32))
			}
			if isIndoor {
				indoor = append(indoor, v)
			} else {
				neutral = append(neutral, v)
			}
		}
	}
	if len(indoor) > 0 {
		return singleReading(indoor)
	}
	return singleReading(neutral)
}

func singleReading(values []int) *int {
	if len(values) == 0 {
		return nil
	}
	v := values[0]
	for _, other := range values[1:] {
		if other != v {
			return nil
		}
	}
	return &v
}

func extractIdentity(clean, folded string) *models.Identity {
	id := &models.Identity{}
	if m := phonePattern.FindStringSubmatch(folded); m != nil {
		id.Phone = "+1" + m[2] + m[3] + m[4]
	}
	if email := emailPattern.FindString(folded); email != "" {
		id.Email = email
	}
	if m := namePattern.FindStringSubmatch(clean); m != nil {
		id.Name = cleanName(m[1])
	}
	if id.Empty() {
		return nil
	}
	return id
}

func cleanName(raw string) string {
	var kept []string
	for _, tok := range strings.Fields(raw) {
		if nameStopWords[strings.ToLower(tok)] {
			break
		}
		kept = append(kept, tok)
	}
	if len(kept) == 0 {
		return ""
	}
	return cases.Title(language.English).String(strings.Join(kept, " "))
}

// NormalizePhone canonicalises a NANP number to +1XXXXXXXXXX. It returns ""
// when the input does not hold 10 digits (or 11 with a leading 1).
func NormalizePhone(raw string) string {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	d := digits.String()
	if len(d) == 11 && d[0] == '1' {
		d = d[1:]
	}
	if len(d) != 10 {
		return ""
	}
	return "+1" + d
}

// parseAddress finds a street line and reads city, state and postal code
// from what follows it. A bare postal code yields an incomplete location.
func parseAddress(clean string) *models.Location {
	loc := &models.Location{}
	tail := ""
	if idx := streetPattern.FindStringSubmatchIndex(clean); idx != nil {
		loc.Street = strings.TrimSuffix(strings.TrimSpace(clean[idx[2]:idx[3]]), ".")
		loc.Street = cases.Title(language.English, cases.NoLower).String(loc.Street)
		tail = clean[idx[1]:]
		if cut := strings.IndexAny(tail, ".!?;"); cut >= 0 {
			tail = tail[:cut]
		}
		if cut := strings.Index(strings.ToLower(tail), " and "); cut >= 0 {
			tail = tail[:cut]
		}
	} else if m := zipOnlyPattern.FindStringSubmatch(clean); m != nil {
		loc.PostalCode = m[1]
		return loc
	} else {
		return nil
	}

	if zip := zipPattern.FindStringSubmatchIndex(tail); zip != nil {
		loc.PostalCode = tail[zip[2]:zip[3]]
		tail = tail[:zip[0]]
	}
	tail = strings.Trim(tail, " ,")
	if fields := strings.Fields(tail); len(fields) > 0 {
		last := strings.ToLower(strings.Trim(fields[len(fields)-1], ".,"))
		withComma := strings.Contains(tail, ",") || loc.PostalCode != ""
		if state, ok := usStates[last]; ok && len(fields) > 1 && withComma {
			loc.State = state
			fields = fields[:len(fields)-1]
		}
		city := strings.Trim(strings.Join(fields, " "), " ,")
		city = strings.TrimPrefix(city, "in ")
		city = strings.TrimPrefix(city, "In ")
		if len(strings.Fields(city)) <= 3 && city != "" {
			loc.City = city
		}
	}
	loc.Complete = loc.Street != "" && loc.City != "" && loc.PostalCode != ""
	return loc
}

// parseAddressHint accepts "street, city, ST zip" without requiring a
// recognised street suffix.
func parseAddressHint(raw string) *models.Location {
	clean := cleanText(raw)
	if loc := parseAddress(clean); loc != nil && loc.Street != "" {
		return loc
	}
	parts := strings.Split(clean, ",")
	loc := &models.Location{Street: strings.TrimSpace(parts[0])}
	if len(parts) > 1 {
		if sub := parseAddress("1 x st, " + strings.Join(parts[1:], ",")); sub != nil {
			loc.City, loc.State, loc.PostalCode = sub.City, sub.State, sub.PostalCode
		}
	}
	loc.Complete = loc.Street != "" && loc.City != "" && loc.PostalCode != ""
	return loc
}

func parseBudget(folded string) *int {
	m := budgetPattern.FindStringSubmatch(folded)
	if m == nil {
		return nil
	}
	var raw string
	thousands := false
	switch {
	case m[1] != "":
		raw, thousands = m[1], m[2] != ""
	case m[3] != "":
		raw, thousands = m[3], true
	default:
		raw = m[4]
	}
	v, err := strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
	if err != nil {
		return nil
	}
	if thousands {
		v *= 1000
	}
	return &v
}

func (e *Extractor) matchRole(folded string) string {
	for _, r := range e.roles {
		if r.pattern.MatchString(folded) {
			return r.id
		}
	}
	return ""
}

func firstPhrase(rules []phraseRule, folded string) string {
	for _, rule := range rules {
		if rule.pattern.MatchString(folded) {
			return rule.value
		}
	}
	return ""
}

func firstInt(re *regexp.Regexp, s string) (int, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, false
	}
	return v, true
}

func firstGroup(re *regexp.Regexp, s string, transform func(string) string) string {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	if transform != nil {
		return transform(m[1])
	}
	return m[1]
}
