package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"command-pipeline/internal/api"
	"command-pipeline/internal/common/audit"
	"command-pipeline/internal/common/auth"
	"command-pipeline/internal/common/aws"
	"command-pipeline/internal/common/camunda"
	"command-pipeline/internal/common/config"
	"command-pipeline/internal/common/database"
	"command-pipeline/internal/common/ledger"
	"command-pipeline/internal/common/logger"
	"command-pipeline/internal/common/observability"
	"command-pipeline/internal/common/validation"
	"command-pipeline/internal/common/zoho"
	executeeffects "command-pipeline/internal/workers/pipeline/execute-effects"
	extractcommand "command-pipeline/internal/workers/pipeline/extract-command"
	handoffdecision "command-pipeline/internal/workers/pipeline/handoff-decision"
	processcommand "command-pipeline/internal/workers/pipeline/process-command"
)

// app holds every long-lived component of a running service.
type app struct {
	cfg      *config.Config
	log      logger.Logger
	sql      *database.SQLClient
	redis    *database.RedisClient
	ledger   ledger.Ledger
	recorder *audit.Recorder
	obs      *observability.Observability
	pipeline *processcommand.Pipeline
	server   *api.Server
	camunda  *camunda.Client
	workers  []*camunda.Worker
}

// buildApp wires every component from cfg. reg receives the OpenTelemetry
// Prometheus exporter.
func buildApp(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, log logger.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.close(context.Background())
		}
	}()

	pol, err := loadPolicy(cfg.Policy.Path)
	if err != nil {
		return nil, err
	}

	if a.sql, err = database.Open(cfg.Database); err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := a.sql.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	if cfg.Ledger.Backend == "redis" {
		if a.redis, err = database.NewRedis(cfg.Database.Redis); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
	}
	if a.ledger, err = ledger.New(cfg.Ledger, a.sql, a.redis); err != nil {
		return nil, err
	}

	ext, err := newIntegrations(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := newAuditStore(ctx, cfg, a.sql)
	if err != nil {
		return nil, err
	}
	a.recorder = audit.NewRecorder(store, ext.alerter, config.GetDuration(cfg.Audit.Timeout), log)

	gateway := executeeffects.NewService(
		executeeffects.ConfigFrom(cfg.Gateway),
		zoho.NewCRMClient(cfg.Integrations.Zoho.BaseURL, cfg.Integrations.Zoho.AuthToken, config.GetDuration(cfg.Gateway.CallTimeout)),
		ext.notifier,
		log,
	)

	schedule, err := handoffdecision.NewSchedule(cfg.Handoff)
	if err != nil {
		return nil, fmt.Errorf("handoff schedule: %w", err)
	}

	if a.obs, err = observability.New(cfg.Observability, reg); err != nil {
		return nil, fmt.Errorf("observability: %w", err)
	}

	a.pipeline, err = processcommand.NewPipeline(processcommand.ConfigFrom(cfg.Ledger), processcommand.Deps{
		Policy:        pol,
		Ledger:        a.ledger,
		Gateway:       gateway,
		Audit:         a.recorder,
		Schedule:      schedule,
		Observability: a.obs,
	}, log)
	if err != nil {
		return nil, err
	}

	validator, err := validation.NewCommandRequestValidator()
	if err != nil {
		return nil, err
	}
	authn, err := auth.New(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	a.server = api.New(cfg.Server, api.Deps{
		Pipeline:      a.pipeline,
		Validator:     validator,
		Authenticator: authn,
		Checks: map[string]api.Pinger{
			"ledger": a.ledger,
			"audit":  a.recorder,
		},
	}, log)

	if cfg.Camunda.Enabled {
		if a.camunda, err = camunda.NewClient(camunda.ClientConfigFrom(cfg.Camunda)); err != nil {
			return nil, fmt.Errorf("camunda: %w", err)
		}
		wc := camunda.WorkerConfig{
			TaskType:      cfg.Camunda.TaskType,
			MaxJobsActive: cfg.Camunda.MaxJobsActive,
			Timeout:       config.GetDuration(cfg.Camunda.Timeout),
		}
		a.workers = append(a.workers, camunda.NewWorker(a.camunda.GetClient(), wc,
			processcommand.NewHandler(cfg.Camunda.TaskType, a.pipeline, validator, log), log))

		wc.TaskType = extractcommand.TaskType
		a.workers = append(a.workers, camunda.NewWorker(a.camunda.GetClient(), wc,
			extractcommand.NewHandler(pol, log), log))
	}

	ok = true
	return a, nil
}

type integrations struct {
	notifier executeeffects.Notifier
	alerter  audit.Alerter
}

// newIntegrations loads AWS credentials only when a channel or the alert
// topic needs them.
func newIntegrations(ctx context.Context, cfg *config.Config) (integrations, error) {
	var out integrations
	awsIntegration := cfg.Integrations.AWS
	if !awsIntegration.SES.Enabled && !awsIntegration.SNS.Enabled && cfg.Audit.AlertTopicARN == "" {
		return out, nil
	}

	awsCfg, err := aws.LoadConfig(ctx, awsIntegration.Region)
	if err != nil {
		return out, fmt.Errorf("load aws config: %w", err)
	}
	if awsIntegration.SES.Enabled || awsIntegration.SNS.Enabled {
		out.notifier = aws.NewNotifierFromConfig(awsCfg, cfg.Integrations)
	}
	if cfg.Audit.AlertTopicARN != "" {
		out.alerter = aws.NewAlerter(aws.NewSNSClient(awsCfg, awsIntegration.SNS.DefaultSMSSenderID), cfg.Audit.AlertTopicARN)
	}
	return out, nil
}

func newAuditStore(ctx context.Context, cfg *config.Config, sqlClient *database.SQLClient) (audit.Store, error) {
	if cfg.Audit.Backend != "elasticsearch" {
		return audit.NewSQLStore(sqlClient), nil
	}
	es, err := database.NewElasticsearch(cfg.Database.Elasticsearch)
	if err != nil {
		return nil, fmt.Errorf("connect elasticsearch: %w", err)
	}
	if err := es.EnsureIndex(ctx, cfg.Audit.Index, audit.IndexMapping); err != nil {
		return nil, fmt.Errorf("ensure audit index: %w", err)
	}
	return audit.NewElasticsearchStore(es, cfg.Audit.Index), nil
}

// close releases resources in reverse dependency order. Pending audit
// writes are flushed before the database goes away.
func (a *app) close(ctx context.Context) {
	for _, w := range a.workers {
		w.Stop()
	}
	if a.camunda != nil {
		_ = a.camunda.Close()
	}
	if a.recorder != nil {
		flushCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		if err := a.recorder.Flush(flushCtx); err != nil {
			a.log.Warn("audit flush incomplete", map[string]interface{}{"error": err.Error()})
		}
		cancel()
	}
	if a.obs != nil {
		_ = a.obs.Shutdown(ctx)
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.sql != nil {
		_ = a.sql.Close()
	}
}
