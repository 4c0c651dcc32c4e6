package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"recipe-planner/internal/categorize"
	"recipe-planner/internal/database"
	"recipe-planner/internal/mealplan"
	"recipe-planner/internal/recipe"
	"recipe-planner/internal/shopping"
	"recipe-planner/internal/user"
)

const (
	allowedID  int64 = 1001
	strangerID int64 = 2002
	chatID     int64 = 555
)

// fakeAPI records everything the bot sends.
type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) HandleUpdate(r *http.Request) (*tgbotapi.Update, error) {
	var u tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (f *fakeAPI) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) last() string {
	texts := f.texts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type testBot struct {
	bot     *Bot
	api     *fakeAPI
	users   *user.Repository
	recipes *recipe.Repository
	plans   *mealplan.Repository
	svc     *shopping.Service
}

var wednesday = time.Date(2024, 3, 6, 15, 0, 0, 0, time.UTC)
var monday = time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := zap.NewNop()
	users := user.NewRepository(db.X)
	recipes := recipe.NewRepository(db.X, logger)
	plans := mealplan.NewRepository(db.X)
	classifier, err := categorize.NewKeywordClassifier(false)
	require.NoError(t, err)
	svc := shopping.NewService(plans, recipes, shopping.NewRepository(db.X), classifier, logger)

	api := &fakeAPI{}
	allowed := func(id int64) bool { return id == allowedID }
	bot := newBot(api, Deps{Shopping: svc, Users: users}, allowed, logger)
	bot.now = func() time.Time { return wednesday }
	return &testBot{bot: bot, api: api, users: users, recipes: recipes, plans: plans, svc: svc}
}

func message(from int64, text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: from, FirstName: "Ana", UserName: "ana"},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		cmd, _, _ := strings.Cut(text, " ")
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}}
	}
	return tgbotapi.Update{Message: msg}
}

func (tb *testBot) send(t *testing.T, from int64, text string) {
	t.Helper()
	tb.bot.handleUpdate(context.Background(), message(from, text))
}

func (tb *testBot) register(t *testing.T) *user.User {
	t.Helper()
	tb.send(t, allowedID, "/start")
	u, err := tb.users.GetByTelegramID(context.Background(), allowedID)
	require.NoError(t, err)
	require.NotNil(t, u)
	return u
}

func TestBot_IgnoresUnauthorizedUsers(t *testing.T) {
	tb := newTestBot(t)

	tb.send(t, strangerID, "/start")

	assert.Empty(t, tb.api.texts())
	u, err := tb.users.GetByTelegramID(context.Background(), strangerID)
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestBot_RequiresRegistration(t *testing.T) {
	tb := newTestBot(t)

	tb.send(t, allowedID, "/list")

	assert.Contains(t, tb.api.last(), "/start")
	u, err := tb.users.GetByTelegramID(context.Background(), allowedID)
	require.NoError(t, err)
	assert.Nil(t, u, "reads must not create users")
}

func TestBot_StartRegistersOnce(t *testing.T) {
	tb := newTestBot(t)

	u := tb.register(t)
	assert.Equal(t, "Ana", u.Name)
	assert.Contains(t, tb.api.last(), "Welcome")

	tb.send(t, allowedID, "/start")
	assert.Contains(t, tb.api.last(), "already registered")
}

func TestBot_ItemAndList(t *testing.T) {
	tb := newTestBot(t)
	u := tb.register(t)

	tb.send(t, allowedID, "/item 2 cups rice")
	assert.Contains(t, tb.api.last(), "2 cups rice")

	saved, err := tb.svc.GetSaved(context.Background(), u.ID, monday)
	require.NoError(t, err)
	require.NotNil(t, saved)
	require.Len(t, saved.CustomItems, 1)
	assert.Equal(t, "rice", saved.CustomItems[0].Ingredient)
	assert.Equal(t, "cups", saved.CustomItems[0].Unit)

	tb.send(t, allowedID, "/list")
	out := tb.api.last()
	assert.Contains(t, out, "week of 2024-03-04")
	assert.Contains(t, out, "rice")
	assert.Contains(t, out, "`rice|cups`")

	tb.send(t, allowedID, "/item")
	assert.Contains(t, tb.api.last(), "Usage")
}

func TestBot_ListFromMealPlans(t *testing.T) {
	ctx := context.Background()
	tb := newTestBot(t)
	u := tb.register(t)
	q := 2.0
	require.NoError(t, tb.recipes.Save(ctx, recipe.Recipe{ID: "r1", Title: "Pancakes", Ingredients: []recipe.Ingredient{
		{Text: "2 cups flour", Quantity: &q, Unit: "cups", Item: "flour", Category: "pantry"},
	}}))
	_, err := tb.plans.AddMeal(ctx, u.ID, monday.AddDate(0, 0, 1), mealplan.SlotDinner, "r1", nil)
	require.NoError(t, err)

	tb.send(t, allowedID, "/list")

	out := tb.api.last()
	assert.Contains(t, out, "1 recipes, 1 meals")
	assert.Contains(t, out, "2 cups flour")
	last := tb.api.sent[len(tb.api.sent)-1].(tgbotapi.MessageConfig)
	kb, ok := last.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, kb.InlineKeyboard, 1)
	require.NotNil(t, kb.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "t|2024-03-04|1", *kb.InlineKeyboard[0][0].CallbackData)
}

func TestBot_CallbackTogglesCheckedState(t *testing.T) {
	ctx := context.Background()
	tb := newTestBot(t)
	u := tb.register(t)
	tb.send(t, allowedID, "/item soap")

	callback := func() {
		tb.bot.handleUpdate(ctx, tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb",
			From:    &tgbotapi.User{ID: allowedID},
			Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: chatID}},
			Data:    "t|2024-03-04|1",
		}})
	}

	callback()
	saved, err := tb.svc.GetSaved(ctx, u.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"soap|"}, saved.CheckedItemKeys)
	assert.Contains(t, tb.api.last(), "✅ soap")

	callback()
	saved, err = tb.svc.GetSaved(ctx, u.ID, monday)
	require.NoError(t, err)
	assert.Empty(t, saved.CheckedItemKeys)
	assert.Len(t, tb.api.requests, 2)
}

func TestBot_RemoveAndClear(t *testing.T) {
	ctx := context.Background()
	tb := newTestBot(t)
	u := tb.register(t)
	tb.send(t, allowedID, "/item soap")
	tb.send(t, allowedID, "/item 2 cups rice")
	tb.send(t, allowedID, "/item milk")

	tb.send(t, allowedID, "/remove soap")
	tb.send(t, allowedID, "/remove rice|cups")
	saved, err := tb.svc.GetSaved(ctx, u.ID, monday)
	require.NoError(t, err)
	require.Len(t, saved.CustomItems, 1)
	assert.Equal(t, "milk", saved.CustomItems[0].Ingredient)

	tb.send(t, allowedID, "/clear")
	saved, err = tb.svc.GetSaved(ctx, u.ID, monday)
	require.NoError(t, err)
	assert.Empty(t, saved.CustomItems)
}

func TestBot_AddUnknownRecipe(t *testing.T) {
	tb := newTestBot(t)
	tb.register(t)

	tb.send(t, allowedID, "/add nope")

	assert.Contains(t, tb.api.last(), "Recipe not found")
}

func TestBot_ClipURL(t *testing.T) {
	tb := newTestBot(t)
	tb.register(t)

	tb.send(t, allowedID, "https://example.com/pie")
	assert.Contains(t, tb.api.last(), "not configured")

	tb.bot.deps.Clip = func(_ context.Context, url string) (*recipe.Recipe, error) {
		return &recipe.Recipe{ID: "pie-id", Title: "Apple Pie", SourceURL: url, Ingredients: []recipe.Ingredient{{Text: "apples"}}}, nil
	}
	tb.send(t, allowedID, "https://example.com/pie")
	out := tb.api.last()
	assert.Contains(t, out, "Recipe Saved")
	assert.Contains(t, out, "Apple Pie")
	assert.Contains(t, out, "/add pie-id")
}

func TestBot_ServeHTTP(t *testing.T) {
	tb := newTestBot(t)
	body, err := json.Marshal(message(allowedID, "/start"))
	require.NoError(t, err)

	w := httptest.NewRecorder()
	tb.bot.ServeHTTP(w, httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader(string(body))))
	tb.bot.Wait()

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, tb.api.last(), "Welcome")

	w = httptest.NewRecorder()
	tb.bot.ServeHTTP(w, httptest.NewRequest(http.MethodPost, WebhookPath, strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
