package event

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/utafrali/accounts/internal/domain"
	"github.com/utafrali/accounts/pkg/breaker"
	pkgkafka "github.com/utafrali/accounts/pkg/kafka"
	"github.com/utafrali/accounts/pkg/logger"
)

// Kafka topics for user domain events.
var (
	TopicUserRegistered         = pkgkafka.Topic(AggregateTypeUser, "registered")
	TopicUserUpdated            = pkgkafka.Topic(AggregateTypeUser, "updated")
	TopicUserDeleted            = pkgkafka.Topic(AggregateTypeUser, "deleted")
	TopicPasswordResetRequested = pkgkafka.Topic(AggregateTypeUser, "password_reset_requested")
)

// AggregateTypeUser is the aggregate type of every event in this package.
const AggregateTypeUser = "user"

// UserData is the payload for user.registered and user.updated events.
type UserData struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Role   string `json:"role"`
	Avatar string `json:"avatar,omitempty"`
}

// UserDeletedData is the payload for a user.deleted event.
type UserDeletedData struct {
	ID string `json:"id"`
}

// PasswordResetRequestedData is the payload for a
// user.password_reset_requested event. HTML is the rendered email body for
// the notification service to deliver.
type PasswordResetRequestedData struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	Email     string    `json:"email,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Subject   string    `json:"subject"`
	HTML      string    `json:"html"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Publisher emits user domain events.
type Publisher interface {
	UserRegistered(ctx context.Context, user *domain.User) error
	UserUpdated(ctx context.Context, user *domain.User) error
	UserDeleted(ctx context.Context, userID string) error
	PasswordResetRequested(ctx context.Context, data PasswordResetRequestedData) error
}

// Sender delivers an event envelope to a topic. *pkgkafka.Producer
// implements it.
type Sender interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes user events through a circuit breaker so a failing
// broker is not hammered on every request.
type Producer struct {
	sender  Sender
	breaker *gobreaker.CircuitBreaker[struct{}]
	logger  *slog.Logger
}

var _ Publisher = (*Producer)(nil)

// NewProducer creates a new event producer.
func NewProducer(sender Sender, cbCfg breaker.Config, logger *slog.Logger) *Producer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		sender:  sender,
		breaker: breaker.New[struct{}](cbCfg, logger),
		logger:  logger,
	}
}

// UserRegistered publishes a user.registered event.
func (p *Producer) UserRegistered(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, "registered", user.ID, userData(user))
}

// UserUpdated publishes a user.updated event.
func (p *Producer) UserUpdated(ctx context.Context, user *domain.User) error {
	return p.publish(ctx, "updated", user.ID, userData(user))
}

// UserDeleted publishes a user.deleted event.
func (p *Producer) UserDeleted(ctx context.Context, userID string) error {
	return p.publish(ctx, "deleted", userID, UserDeletedData{ID: userID})
}

// PasswordResetRequested publishes a user.password_reset_requested event.
func (p *Producer) PasswordResetRequested(ctx context.Context, data PasswordResetRequestedData) error {
	return p.publish(ctx, "password_reset_requested", data.UserID, data)
}

func (p *Producer) publish(ctx context.Context, action, userID string, data any) error {
	event, err := pkgkafka.NewEvent(AggregateTypeUser, action, userID, data,
		pkgkafka.WithCorrelationID(logger.CorrelationIDFromContext(ctx)),
	)
	if err != nil {
		return fmt.Errorf("create %s.%s event: %w", AggregateTypeUser, action, err)
	}

	_, err = p.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, p.sender.Publish(ctx, event.Topic(), event)
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", event.EventType, err)
	}

	p.logger.DebugContext(ctx, "published "+event.EventType+" event",
		slog.String("user_id", userID),
		slog.String("event_id", event.EventID),
	)
	return nil
}

func userData(u *domain.User) UserData {
	return UserData{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		Phone:  u.Phone,
		Role:   u.Role,
		Avatar: u.Avatar,
	}
}

// Noop discards every event. It is used when no brokers are configured.
type Noop struct{}

var _ Publisher = Noop{}

func (Noop) UserRegistered(context.Context, *domain.User) error                  { return nil }
func (Noop) UserUpdated(context.Context, *domain.User) error                     { return nil }
func (Noop) UserDeleted(context.Context, string) error                           { return nil }
func (Noop) PasswordResetRequested(context.Context, PasswordResetRequestedData) error { return nil }
