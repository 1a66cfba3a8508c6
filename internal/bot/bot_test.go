package bot

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"net/url"
	"strings"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/otpbot/internal/conversation"
	"github.com/m3rciful/otpbot/internal/storage/sqlite"
	"github.com/m3rciful/otpbot/internal/vault"
)

const testSecret = "JBSWY3DPEHPK3PXP"

// fakeContext implements the slice of tele.Context the handlers touch.
// Unused interface methods panic if reached, which is what we want.
type fakeContext struct {
	tele.Context

	chat     *tele.Chat
	sender   *tele.User
	text     string
	message  *tele.Message
	callback *tele.Callback
	values   map[string]any

	sent  []capturedMsg
	edits []capturedMsg
}

type capturedMsg struct {
	text string
	opts []interface{}
}

func newFakeContext(chatID, userID int64) *fakeContext {
	return &fakeContext{
		chat:   &tele.Chat{ID: chatID},
		sender: &tele.User{ID: userID},
		values: make(map[string]any),
	}
}

func (f *fakeContext) Chat() *tele.Chat         { return f.chat }
func (f *fakeContext) Sender() *tele.User       { return f.sender }
func (f *fakeContext) Text() string             { return f.text }
func (f *fakeContext) Message() *tele.Message   { return f.message }
func (f *fakeContext) Callback() *tele.Callback { return f.callback }
func (f *fakeContext) Update() tele.Update      { return tele.Update{ID: 1} }

func (f *fakeContext) Set(key string, v any) { f.values[key] = v }
func (f *fakeContext) Get(key string) any    { return f.values[key] }

func (f *fakeContext) Send(what interface{}, opts ...interface{}) error {
	f.sent = append(f.sent, capturedMsg{text: fmt.Sprint(what), opts: opts})
	return nil
}

func (f *fakeContext) Edit(what interface{}, opts ...interface{}) error {
	f.edits = append(f.edits, capturedMsg{text: fmt.Sprint(what), opts: opts})
	return nil
}

func (f *fakeContext) lastSent(t *testing.T) capturedMsg {
	t.Helper()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fakeContext) lastEdit(t *testing.T) capturedMsg {
	t.Helper()
	require.NotEmpty(t, f.edits)
	return f.edits[len(f.edits)-1]
}

type fakeFiles struct {
	data []byte
	err  error
}

func (f *fakeFiles) File(*tele.File) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

func newTestBot(t *testing.T) *Bot {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:%s?mode=memory&cache=shared&_pragma=busy_timeout(5000)",
		url.PathEscape(t.Name()),
	)
	db, err := sqlx.Connect("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)

	store, err := sqlite.OpenDB(db)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return New(vault.New(store), conversation.NewRegistry(0))
}

func qrPNG(t *testing.T, text string) []byte {
	t.Helper()
	matrix, err := qrcode.NewQRCodeWriter().Encode(
		text, gozxing.BarcodeFormat_QR_CODE, 256, 256, nil)
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, matrix))
	return buf.Bytes()
}

// runSetFlow walks a chat through /set to a saved credential.
func runSetFlow(t *testing.T, b *Bot, chatID, userID int64, name, secret string) {
	t.Helper()

	c := newFakeContext(chatID, userID)
	require.NoError(t, b.handleSet(c))
	assert.Equal(t, msgSetPrompt, c.lastSent(t).text)
	assert.True(t, b.Active(chatID))

	c = newFakeContext(chatID, userID)
	c.text = name
	require.NoError(t, b.HandleText(c))
	assert.Contains(t, c.lastSent(t).text, "The name is set to")

	c = newFakeContext(chatID, userID)
	c.text = secret
	require.NoError(t, b.HandleText(c))
	assert.Equal(t, msgSaved(name), c.lastSent(t).text)
	assert.False(t, b.Active(chatID))
}

func TestSetFlowHappyPath(t *testing.T) {
	b := newTestBot(t)
	runSetFlow(t, b, 100, 7, "work", testSecret)
}

func TestSetFlowDuplicateName(t *testing.T) {
	b := newTestBot(t)
	runSetFlow(t, b, 100, 7, "work", testSecret)

	c := newFakeContext(200, 8)
	require.NoError(t, b.handleSet(c))

	// names are unique across all owners
	c = newFakeContext(200, 8)
	c.text = "work"
	require.NoError(t, b.HandleText(c))
	assert.Equal(t, msgNameInUse, c.lastSent(t).text)
	assert.False(t, b.Active(200))
}

func TestSetFlowDuplicateSecretRetries(t *testing.T) {
	b := newTestBot(t)
	runSetFlow(t, b, 100, 7, "first", testSecret)

	c := newFakeContext(200, 8)
	require.NoError(t, b.handleSet(c))
	c = newFakeContext(200, 8)
	c.text = "second"
	require.NoError(t, b.HandleText(c))

	c = newFakeContext(200, 8)
	c.text = testSecret
	require.NoError(t, b.HandleText(c))
	assert.Equal(t, msgSecretInUse, c.lastSent(t).text)
	// still awaiting a different secret
	assert.True(t, b.Active(200))

	c = newFakeContext(200, 8)
	c.text = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"
	require.NoError(t, b.HandleText(c))
	assert.Equal(t, msgSaved("second"), c.lastSent(t).text)
	assert.False(t, b.Active(200))
}

func TestSetFlowSupersedes(t *testing.T) {
	b := newTestBot(t)

	c := newFakeContext(100, 7)
	require.NoError(t, b.handleSet(c))
	c = newFakeContext(100, 7)
	c.text = "abandoned"
	require.NoError(t, b.HandleText(c))

	// a second /set discards the pending secret step
	c = newFakeContext(100, 7)
	require.NoError(t, b.handleSet(c))
	c = newFakeContext(100, 7)
	c.text = "fresh"
	require.NoError(t, b.HandleText(c))
	assert.Contains(t, c.lastSent(t).text, `"fresh"`)
}

func TestPhotoPathMatchesTextPath(t *testing.T) {
	b := newTestBot(t)
	b.SetFiles(&fakeFiles{data: qrPNG(t, testSecret)})

	c := newFakeContext(100, 7)
	require.NoError(t, b.handleSet(c))
	c = newFakeContext(100, 7)
	c.text = "scanned"
	require.NoError(t, b.HandleText(c))

	c = newFakeContext(100, 7)
	c.message = &tele.Message{Photo: &tele.Photo{File: tele.File{FileID: "f1"}}}
	require.NoError(t, b.HandlePhoto(c))
	assert.Equal(t, msgSaved("scanned"), c.lastSent(t).text)
	assert.False(t, b.Active(100))

	// the stored secret generates like a text-entered one
	c = newFakeContext(100, 7)
	c.message = &tele.Message{Payload: "scanned"}
	require.NoError(t, b.handleGenerate(c))
	assert.Contains(t, c.lastSent(t).text, "||")
}

func TestPhotoInvalidQR(t *testing.T) {
	b := newTestBot(t)
	b.SetFiles(&fakeFiles{data: []byte("not an image")})

	c := newFakeContext(100, 7)
	require.NoError(t, b.handleSet(c))
	c = newFakeContext(100, 7)
	c.text = "broken"
	require.NoError(t, b.HandleText(c))

	c = newFakeContext(100, 7)
	c.message = &tele.Message{Photo: &tele.Photo{File: tele.File{FileID: "f1"}}}
	require.NoError(t, b.HandlePhoto(c))
	assert.Equal(t, msgInvalidQR, c.lastSent(t).text)
	assert.False(t, b.Active(100))
}

func TestCancel(t *testing.T) {
	b := newTestBot(t)

	c := newFakeContext(100, 7)
	require.NoError(t, b.handleCancel(c))
	assert.Equal(t, msgNothingToDo, c.lastSent(t).text)

	c = newFakeContext(100, 7)
	require.NoError(t, b.handleSet(c))
	c = newFakeContext(100, 7)
	require.NoError(t, b.handleCancel(c))
	assert.Equal(t, msgCancelled, c.lastSent(t).text)
	assert.False(t, b.Active(100))
}

func TestGenerateByArgument(t *testing.T) {
	b := newTestBot(t)
	runSetFlow(t, b, 100, 7, "work", testSecret)

	c := newFakeContext(100, 7)
	c.message = &tele.Message{Payload: "work"}
	require.NoError(t, b.handleGenerate(c))

	got := c.lastSent(t)
	assert.True(t, strings.HasPrefix(got.text, "Your TOTP for work is: ||"))
	require.NotEmpty(t, got.opts)
	opts, ok := got.opts[0].(*tele.SendOptions)
	require.True(t, ok)
	assert.Equal(t, tele.ModeMarkdownV2, opts.ParseMode)
}

func TestGenerateUnknownName(t *testing.T) {
	b := newTestBot(t)

	c := newFakeContext(100, 7)
	c.message = &tele.Message{Payload: "nosuch"}
	require.NoError(t, b.handleGenerate(c))
	assert.Equal(t, msgNoKeyFound("nosuch"), c.lastSent(t).text)
}

func TestGenerateMenu(t *testing.T) {
	b := newTestBot(t)

	c := newFakeContext(100, 7)
	require.NoError(t, b.handleGenerate(c))
	assert.Equal(t, msgNoKeysYet, c.lastSent(t).text)

	runSetFlow(t, b, 100, 7, "work", testSecret)

	c = newFakeContext(100, 7)
	require.NoError(t, b.handleGenerate(c))
	got := c.lastSent(t)
	assert.Equal(t, msgChooseGenerate, got.text)

	require.NotEmpty(t, got.opts)
	opts, ok := got.opts[0].(*tele.SendOptions)
	require.True(t, ok)
	require.NotNil(t, opts.ReplyMarkup)
	require.Len(t, opts.ReplyMarkup.InlineKeyboard, 1)
	btn := opts.ReplyMarkup.InlineKeyboard[0][0]
	assert.Equal(t, "work", btn.Text)
	assert.Equal(t, "generate_work", btn.Data)
}

func TestRenameFlow(t *testing.T) {
	b := newTestBot(t)
	runSetFlow(t, b, 100, 7, "old", testSecret)

	c := newFakeContext(100, 7)
	c.callback = &tele.Callback{Data: "rename_old"}
	require.NoError(t, b.DispatchCallback(c))
	assert.Equal(t, msgRenameSelected("old"), c.lastEdit(t).text)
	assert.True(t, b.Active(100))

	c = newFakeContext(100, 7)
	c.text = "new"
	require.NoError(t, b.HandleText(c))
	assert.Equal(t, msgRenamed("old", "new"), c.lastSent(t).text)
	assert.False(t, b.Active(100))

	c = newFakeContext(100, 7)
	c.message = &tele.Message{Payload: "new"}
	require.NoError(t, b.handleGenerate(c))
	assert.Contains(t, c.lastSent(t).text, "||")
}

func TestRenameTakenNameStaysInStep(t *testing.T) {
	b := newTestBot(t)
	runSetFlow(t, b, 100, 7, "one", testSecret)
	runSetFlow(t, b, 100, 7, "two", "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ")

	c := newFakeContext(100, 7)
	c.callback = &tele.Callback{Data: "rename_one"}
	require.NoError(t, b.DispatchCallback(c))

	c = newFakeContext(100, 7)
	c.text = "two"
	require.NoError(t, b.HandleText(c))
	assert.Equal(t, msgNewNameTaken, c.lastSent(t).text)
	assert.True(t, b.Active(100))
}

func TestDeleteConfirmationGate(t *testing.T) {
	b := newTestBot(t)
	runSetFlow(t, b, 100, 7, "doomed", testSecret)

	c := newFakeContext(100, 7)
	c.callback = &tele.Callback{Data: "delete_doomed"}
	require.NoError(t, b.DispatchCallback(c))

	got := c.lastEdit(t)
	assert.Equal(t, msgDeleteConfirm("doomed"), got.text)
	require.NotEmpty(t, got.opts)
	markup, ok := got.opts[0].(*tele.ReplyMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.Len(t, markup.InlineKeyboard[0], 2)
	assert.Equal(t, "confirm_delete_doomed", markup.InlineKeyboard[0][0].Data)
	assert.Equal(t, "cancel_delete", markup.InlineKeyboard[0][1].Data)

	// nothing deleted until confirmed
	c = newFakeContext(100, 7)
	c.message = &tele.Message{Payload: "doomed"}
	require.NoError(t, b.handleGenerate(c))
	assert.Contains(t, c.lastSent(t).text, "||")

	c = newFakeContext(100, 7)
	c.callback = &tele.Callback{Data: "confirm_delete_doomed"}
	require.NoError(t, b.DispatchCallback(c))
	assert.Equal(t, msgDeleted("doomed"), c.lastEdit(t).text)

	c = newFakeContext(100, 7)
	c.message = &tele.Message{Payload: "doomed"}
	require.NoError(t, b.handleGenerate(c))
	assert.Equal(t, msgNoKeyFound("doomed"), c.lastSent(t).text)
}

func TestDeleteCancelled(t *testing.T) {
	b := newTestBot(t)

	c := newFakeContext(100, 7)
	c.callback = &tele.Callback{Data: "cancel_delete"}
	require.NoError(t, b.DispatchCallback(c))
	assert.Equal(t, msgDeleteAborted, c.lastEdit(t).text)
}

func TestGenerateCallbackEditsTwice(t *testing.T) {
	b := newTestBot(t)
	runSetFlow(t, b, 100, 7, "work", testSecret)

	c := newFakeContext(100, 7)
	c.callback = &tele.Callback{Data: "generate_work"}
	require.NoError(t, b.DispatchCallback(c))

	require.Len(t, c.edits, 2)
	assert.Equal(t, msgGenerating("work"), c.edits[0].text)
	assert.Contains(t, c.edits[1].text, "||")
}

func TestHelpTopics(t *testing.T) {
	b := newTestBot(t)

	c := newFakeContext(100, 7)
	require.NoError(t, b.handleHelp(c))
	assert.Equal(t, msgHelpHeader, c.lastSent(t).text)

	for topic, want := range map[string]string{
		"set":      helpTextSet,
		"generate": helpTextGenerate,
		"delete":   helpTextDelete,
		"rename":   helpTextRename,
		"bogus":    msgHelpUnknownTopic,
	} {
		c := newFakeContext(100, 7)
		c.callback = &tele.Callback{Data: "help_" + topic}
		require.NoError(t, b.DispatchCallback(c))
		assert.Equal(t, want, c.lastEdit(t).text)
	}
}

func TestEcho(t *testing.T) {
	b := newTestBot(t)

	c := newFakeContext(100, 7)
	c.message = &tele.Message{Payload: "hello there"}
	require.NoError(t, b.handleEcho(c))
	assert.Equal(t, "hello there", c.lastSent(t).text)

	c = newFakeContext(100, 7)
	c.message = &tele.Message{}
	require.NoError(t, b.handleEcho(c))
	assert.Empty(t, c.sent)
}

func TestUnknownCallbackIgnored(t *testing.T) {
	b := newTestBot(t)

	c := newFakeContext(100, 7)
	c.callback = &tele.Callback{Data: "mystery_data"}
	require.NoError(t, b.DispatchCallback(c))
	assert.Empty(t, c.edits)
	assert.Empty(t, c.sent)
}
