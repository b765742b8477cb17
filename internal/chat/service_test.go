package chat

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/chat-relay/internal/apperr"
	"github.com/suPer8Hu/chat-relay/internal/config"
	"github.com/suPer8Hu/chat-relay/internal/store/dbstore"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm/schema"
)

// countingClient wraps a real client and counts inserts. A non-nil failWith
// makes every insert fail without touching the database.
type countingClient struct {
	dbstore.Client

	mu       sync.Mutex
	inserts  int
	failWith error
}

func (c *countingClient) Insert(ctx context.Context, table string, records any) error {
	c.mu.Lock()
	c.inserts++
	fail := c.failWith
	c.mu.Unlock()
	if fail != nil {
		return fail
	}
	return c.Client.Insert(ctx, table, records)
}

func (c *countingClient) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inserts
}

func openTestClient(t *testing.T) *countingClient {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := dbstore.Open(config.StorageConfig{Driver: "sqlite", URL: "file:" + name + "?mode=memory&cache=shared"})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = dbstore.Close(db) })
	if err := dbstore.Migrate(context.Background(), db, Models()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return &countingClient{Client: dbstore.NewClient(db)}
}

func newTestService(t *testing.T, log *zap.Logger) (*Service, *countingClient) {
	t.Helper()
	c := openTestClient(t)
	return NewService(NewRepo(c), log), c
}

func TestCreateSession(t *testing.T) {
	svc, c := newTestService(t, nil)

	a, err := svc.CreateSession(context.Background())
	require.NoError(t, err)
	b, err := svc.CreateSession(context.Background())
	require.NoError(t, err)

	assert.Len(t, a.ID, 26)
	assert.NotEqual(t, a.ID, b.ID)
	assert.False(t, a.CreatedAt.IsZero())
	assert.Equal(t, 2, c.count())
}

func TestNilClientIsConfigurationError(t *testing.T) {
	svc := NewService(NewRepo(nil), nil)

	_, err := svc.CreateSession(context.Background())
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))

	_, err = svc.LogMessage(context.Background(), "c1", RoleUser, "hi")
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))

	_, err = svc.LogInteraction(context.Background(), "q", "r")
	assert.True(t, apperr.Is(err, apperr.KindConfiguration))
}

func TestLogMessage(t *testing.T) {
	svc, c := newTestService(t, nil)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return fixed }

	m, err := svc.LogMessage(context.Background(), "chat-1", RoleUser, "hello")
	require.NoError(t, err)
	assert.NotZero(t, m.ID)
	assert.Equal(t, 1, c.count())

	got, err := svc.ListMessages(context.Background(), "chat-1", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Content)
	assert.Equal(t, RoleUser, got[0].Role)
	assert.True(t, fixed.Equal(got[0].CreatedAt), "timestamp is taken at call time")
}

func TestLogMessage_LongChatID(t *testing.T) {
	svc, _ := newTestService(t, nil)
	id := strings.Repeat("c", 300)

	_, err := svc.LogMessage(context.Background(), id, RoleUser, "hello")
	require.NoError(t, err)
	got, err := svc.ListMessages(context.Background(), id, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].ChatID)

	// sqlite ignores declared lengths, so check the column that hosted
	// databases get.
	sch, err := schema.Parse(&Message{}, &sync.Map{}, schema.NamingStrategy{})
	require.NoError(t, err)
	assert.EqualValues(t, "text", sch.LookUpField("ChatID").DataType)
	for _, idx := range sch.ParseIndexes() {
		if idx.Name == "idx_messages_chat_created" {
			require.Len(t, idx.Fields, 2)
			assert.Equal(t, "chat_id", idx.Fields[0].DBName)
			assert.Equal(t, 191, idx.Fields[0].Length)
		}
	}
}

func TestLogMessage_MissingFields(t *testing.T) {
	svc, c := newTestService(t, nil)

	cases := []struct {
		chatID, role, content string
		missing               []string
	}{
		{"", RoleUser, "hi", []string{"chat_id"}},
		{"c1", "", "hi", []string{"role"}},
		{"c1", RoleUser, "", []string{"content"}},
		{"", "", "", []string{"chat_id", "role", "content"}},
	}
	for _, tc := range cases {
		_, err := svc.LogMessage(context.Background(), tc.chatID, tc.role, tc.content)
		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, apperr.KindValidation, e.Kind)
		assert.Equal(t, tc.missing, e.Missing)
	}
	assert.Zero(t, c.count())
}

func TestLogMessage_PersistenceFailure(t *testing.T) {
	svc, c := newTestService(t, nil)
	c.failWith = apperr.Persistence("insert into messages", errors.New(`relation "messages" does not exist`))

	_, err := svc.LogMessage(context.Background(), "c1", RoleAssistant, "hi")
	require.Error(t, err)
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindPersistence, e.Kind)
	assert.Contains(t, e.Details, "does not exist")
	assert.Equal(t, 1, c.count(), "no retry")
}

func TestLogStructuredInput_RoundTrip(t *testing.T) {
	svc, _ := newTestService(t, nil)

	inputs := []any{
		map[string]any{},
		map[string]any{
			"title": "Contrato",
			"pages": float64(3),
			"tags":  []any{"legal", "es"},
			"meta":  map[string]any{"draft": true, "owner": nil, "deep": map[string]any{"x": []any{float64(1), "two"}}},
		},
		[]any{"a", float64(2), false},
	}

	for i, in := range inputs {
		m, err := svc.LogStructuredInput(context.Background(), "doc-chat", in)
		require.NoError(t, err, i)
		assert.Equal(t, RoleDocumentData, m.Role)

		var out any
		require.NoError(t, DecodeStructuredInput(m, &out))
		assert.Equal(t, in, out)
	}

	stored, err := svc.ListMessages(context.Background(), "doc-chat", 0)
	require.NoError(t, err)
	require.Len(t, stored, len(inputs))
	var out any
	require.NoError(t, DecodeStructuredInput(&stored[1], &out))
	assert.Equal(t, inputs[1], out)
}

func TestLogStructuredInput_RawJSON(t *testing.T) {
	svc, _ := newTestService(t, nil)

	m, err := svc.LogStructuredInput(context.Background(), "c1", json.RawMessage(`{ "a" : [1, 2] }`))
	require.NoError(t, err)
	assert.Equal(t, `{"a":[1,2]}`, m.Content)
}

func TestLogStructuredInput_Absent(t *testing.T) {
	svc, c := newTestService(t, nil)

	absent := []any{
		nil, "", false, 0, 0.0,
		json.RawMessage("null"), json.RawMessage(nil), json.RawMessage(`""`),
		json.RawMessage("0"), json.RawMessage("false"), json.RawMessage(" 0.0 "),
	}
	for _, in := range absent {
		_, err := svc.LogStructuredInput(context.Background(), "c1", in)
		e, ok := apperr.As(err)
		require.True(t, ok)
		assert.Equal(t, []string{"structured_data_json"}, e.Missing)
	}
	assert.Zero(t, c.count())

	for _, in := range []any{true, 1, json.RawMessage("[]"), json.RawMessage("{}"), json.RawMessage("-2"), json.RawMessage(`"0"`)} {
		_, err := svc.LogStructuredInput(context.Background(), "c1", in)
		assert.NoError(t, err)
	}
}

func TestLogStructuredInput_SerializationError(t *testing.T) {
	svc, c := newTestService(t, nil)

	_, err := svc.LogStructuredInput(context.Background(), "c1", map[string]any{"ch": make(chan int)})
	assert.True(t, apperr.Is(err, apperr.KindSerialization))
	assert.Zero(t, c.count())
}

func TestDecodeStructuredInput_WrongRole(t *testing.T) {
	var out any
	err := DecodeStructuredInput(&Message{Role: RoleUser, Content: "{}"}, &out)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	err = DecodeStructuredInput(&Message{Role: RoleDocumentData, Content: "{"}, &out)
	assert.True(t, apperr.Is(err, apperr.KindSerialization))
}

func TestLogInteraction(t *testing.T) {
	svc, c := newTestService(t, nil)

	a, err := svc.LogInteraction(context.Background(), "Hello", "Hi there")
	require.NoError(t, err)
	b, err := svc.LogInteraction(context.Background(), "Hello", "Hi there")
	require.NoError(t, err)

	assert.Equal(t, "Hello", a.UserQuery)
	assert.Equal(t, "Hi there", a.ChatbotResponse)
	assert.NotEmpty(t, a.RequestID)
	assert.NotEqual(t, a.RequestID, b.RequestID, "fresh request id per attempt")
	assert.Equal(t, 2, c.count())

	var rows []InteractionLog
	require.NoError(t, c.Select(context.Background(), TableInteractions, &rows, dbstore.Query{Order: "id ASC"}))
	require.Len(t, rows, 2)
	assert.Equal(t, a.RequestID, rows[0].RequestID)
}

func TestLogInteraction_MissingFields(t *testing.T) {
	svc, c := newTestService(t, nil)

	_, err := svc.LogInteraction(context.Background(), "", "resp")
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Equal(t, []string{"query"}, e.Missing)

	_, err = svc.LogInteraction(context.Background(), "q", "")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Zero(t, c.count())
}

func TestLogInteraction_LargeInputWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	svc, _ := newTestService(t, zap.New(core))

	_, err := svc.LogInteraction(context.Background(), strings.Repeat("a", LargeInputChars+1), "ok")
	require.NoError(t, err, "large input is still logged")

	warn := logs.FilterMessage("large interaction").All()
	require.Len(t, warn, 1)
	assert.EqualValues(t, LargeInputChars+1, warn[0].ContextMap()["query_chars"])

	_, err = svc.LogInteraction(context.Background(), strings.Repeat("a", LargeInputChars), "ok")
	require.NoError(t, err)
	assert.Len(t, logs.FilterMessage("large interaction").All(), 1, "threshold is exclusive")
}
