package message

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"meta-relay/internal/config"
	"meta-relay/internal/graph"
	"meta-relay/internal/repository"
	"meta-relay/internal/service"
	"meta-relay/internal/service/conversation"
	"meta-relay/internal/testutil"
)

var testMeta = config.MetaConfig{
	WhatsAppBusinessNumber:  "15559999",
	MessengerPageID:         "PAGE",
	DefaultTemplateLanguage: "en_US",
}

type fixture struct {
	db            *gorm.DB
	conversations repository.ConversationRepository
	messages      repository.MessageRepository
	resolver      *conversation.Resolver
	reconciler    *Reconciler
	alerts        *fakeAlerter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewDB(t)
	logger := zap.NewNop()

	f := &fixture{
		db:            db,
		conversations: repository.NewConversationRepository(db),
		messages:      repository.NewMessageRepository(db),
		alerts:        &fakeAlerter{},
	}
	f.resolver = conversation.NewResolver(f.conversations, conversation.NewKeyLocker(nil, time.Second, logger), logger)
	f.reconciler = NewReconciler(f.messages, f.resolver, testMeta, f.alerts, logger)
	return f
}

func (f *fixture) sender(provider Provider) *Sender {
	retry := NewRetryHandler(config.RetryConfig{MaxAttempts: 2, IntervalSeconds: 0}, zap.NewNop())
	return NewSender(provider, f.messages, f.resolver, f.reconciler, retry, testMeta.DefaultTemplateLanguage, zap.NewNop())
}

type fakeAlerter struct {
	mu    sync.Mutex
	types []service.ErrorType
}

func (a *fakeAlerter) NotifyCriticalError(ctx context.Context, errType service.ErrorType, err error, details string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.types = append(a.types, errType)
}

func (a *fakeAlerter) sent() []service.ErrorType {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]service.ErrorType(nil), a.types...)
}

// fakeProvider records calls and answers with canned results.
type fakeProvider struct {
	sendID      string
	sendErr     error
	catalog     []graph.Template
	catalogErrs []error

	textCalls     int
	templateCalls []graph.TemplateMessage
	catalogCalls  int
	onSend        func()
}

func (p *fakeProvider) SendWhatsAppText(ctx context.Context, to, body string) (string, error) {
	p.textCalls++
	if p.onSend != nil {
		p.onSend()
	}
	return p.sendID, p.sendErr
}

func (p *fakeProvider) SendWhatsAppTemplate(ctx context.Context, msg graph.TemplateMessage) (string, error) {
	p.templateCalls = append(p.templateCalls, msg)
	return p.sendID, p.sendErr
}

func (p *fakeProvider) SendMessengerText(ctx context.Context, recipientID, text string) (string, error) {
	p.textCalls++
	if p.onSend != nil {
		p.onSend()
	}
	return p.sendID, p.sendErr
}

func (p *fakeProvider) FetchTemplates(ctx context.Context) ([]graph.Template, error) {
	p.catalogCalls++
	if len(p.catalogErrs) > 0 {
		err := p.catalogErrs[0]
		p.catalogErrs = p.catalogErrs[1:]
		return nil, err
	}
	return p.catalog, nil
}

func mustNotErr(t *testing.T, err error, what string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s failed: %v", what, err)
	}
}

var errNetwork = errors.New("dial tcp: connection refused")
