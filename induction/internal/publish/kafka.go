// Package publish emits plan events to Kafka.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/metro-depot/fleet/induction/internal/planner"
)

const EventPlanGenerated = "induction.plan.generated"

// PlanEvent is the message value written for each generated plan. It carries
// the summary and the per-status trainset lists, not the full reasoning.
type PlanEvent struct {
	EventType    string          `json:"event_type"`
	PlanID       uuid.UUID       `json:"plan_id"`
	PlanningDate string          `json:"planning_date"`
	Summary      planner.Summary `json:"summary"`
	Unfit        []string        `json:"unfit"`
	Fit          []string        `json:"fit"`
	Standby      []string        `json:"standby"`
	Degraded     []string        `json:"degraded,omitempty"`
	SourceError  string          `json:"source_error,omitempty"`
	Attestation  string          `json:"attestation,omitempty"`
	GeneratedAt  time.Time       `json:"generated_at"`
}

func NewPlanEvent(fs planner.FleetStatus) PlanEvent {
	ev := PlanEvent{
		EventType:    EventPlanGenerated,
		PlanID:       fs.PlanID,
		PlanningDate: fs.Summary.PlanningDate,
		Summary:      fs.Summary,
		Unfit:        []string{},
		Fit:          []string{},
		Standby:      []string{},
		SourceError:  fs.SourceError,
		Attestation:  fs.Attestation,
		GeneratedAt:  fs.GeneratedAt,
	}
	for _, v := range fs.Trainsets {
		switch v.Status {
		case planner.StatusUnfit:
			ev.Unfit = append(ev.Unfit, v.TrainsetID)
		case planner.StatusFit:
			ev.Fit = append(ev.Fit, v.TrainsetID)
		default:
			ev.Standby = append(ev.Standby, v.TrainsetID)
		}
		if v.Degraded() {
			ev.Degraded = append(ev.Degraded, v.TrainsetID)
		}
	}
	return ev
}

// messageWriter is the subset of *kafka.Writer used here.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaConfig struct {
	Brokers []string
	Topic   string

	// MaxAttempts defaults to 3.
	MaxAttempts int
	// WriteTimeout bounds each attempt. Defaults to 5s.
	WriteTimeout time.Duration
}

// KafkaPublisher writes one PlanEvent per plan, keyed by planning date so
// that events for the same night land on the same partition.
type KafkaPublisher struct {
	writer       messageWriter
	maxAttempts  int
	writeTimeout time.Duration
	logger       *slog.Logger
	sleep        func(time.Duration)
}

func NewKafkaPublisher(cfg KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaPublisher(w, cfg, logger), nil
}

func newKafkaPublisher(w messageWriter, cfg KafkaConfig, logger *slog.Logger) *KafkaPublisher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KafkaPublisher{
		writer:       w,
		maxAttempts:  cfg.MaxAttempts,
		writeTimeout: cfg.WriteTimeout,
		logger:       logger.With("component", "publish"),
		sleep:        time.Sleep,
	}
}

func (p *KafkaPublisher) PublishPlan(ctx context.Context, fs planner.FleetStatus) error {
	value, err := json.Marshal(NewPlanEvent(fs))
	if err != nil {
		return fmt.Errorf("marshal plan event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(fs.Summary.PlanningDate),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventPlanGenerated)},
			{Key: "plan_id", Value: []byte(fs.PlanID.String())},
		},
	}

	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		msg.Time = time.Now().UTC()
		attemptCtx, cancel := context.WithTimeout(ctx, p.writeTimeout)
		err := p.writer.WriteMessages(attemptCtx, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		p.logger.WarnContext(ctx, "plan event write failed", "plan_id", fs.PlanID, "attempt", attempt, "error", err)
		if attempt < p.maxAttempts {
			p.sleep(backoff)
			if backoff < 2*time.Second {
				backoff *= 2
			}
		}
	}
	return fmt.Errorf("publish plan event failed after %d attempts: %w", p.maxAttempts, lastErr)
}

func (p *KafkaPublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
