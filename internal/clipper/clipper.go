package clipper

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"recipe-planner/internal/ghost"
	"recipe-planner/internal/recipe"
	"recipe-planner/internal/shared"
)

// maxContentBytes caps the text handed to the extractor.
const maxContentBytes = 60_000

var (
	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid recipe url")
	// ErrUnavailable is returned when no clipper is configured.
	ErrUnavailable = errors.New("recipe clipping is not configured")
)

// RecipeSaver persists clipped recipes.
type RecipeSaver interface {
	Save(ctx context.Context, rec recipe.Recipe) error
}

// Recorder stores the token usage of extraction calls.
type Recorder interface {
	RecordMeta(ctx context.Context, meta shared.AgentMeta) error
}

// Clipper fetches recipe pages, extracts them and stores the result.
type Clipper struct {
	extractor  *recipe.Extractor
	saver      RecipeSaver
	publisher  ghost.Client
	recorder   Recorder
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewClipper creates a new Clipper. publisher and recorder may be nil;
// without a publisher clipped recipes are only stored locally.
func NewClipper(extractor *recipe.Extractor, saver RecipeSaver, publisher ghost.Client, recorder Recorder, logger *zap.Logger) *Clipper {
	return &Clipper{
		extractor:  extractor,
		saver:      saver,
		publisher:  publisher,
		recorder:   recorder,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// RecipeID derives the stable id of a recipe clipped from rawURL, so that
// clipping the same page twice updates one recipe.
func RecipeID(rawURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.TrimSpace(rawURL))).String()
}

// ClipURL fetches the URL, extracts the recipe and saves it. When a Ghost
// publisher is configured a formatted copy is published too; a failed
// publish is logged and does not fail the clip.
func (c *Clipper) ClipURL(ctx context.Context, rawURL string) (*recipe.Recipe, error) {
	rawURL = strings.TrimSpace(rawURL)
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	page, err := c.fetchAndCleanHTML(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch content: %w", err)
	}

	rec, meta, err := c.extractor.Extract(ctx, recipe.PostData{
		ID:        RecipeID(rawURL),
		Title:     page.title,
		SourceURL: rawURL,
		UpdatedAt: c.now().Format(time.RFC3339),
		HTML:      page.content,
	})
	c.record(ctx, meta)
	if err != nil {
		return nil, fmt.Errorf("ai extraction failed: %w", err)
	}
	if len(rec.Ingredients) == 0 {
		return nil, errors.New("no ingredients found on page")
	}
	rec.Source = recipe.SourceClip

	if err := c.saver.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save recipe: %w", err)
	}

	if c.publisher != nil {
		post, err := c.publisher.CreatePost(ctx, rec.Title, formatToHTML(rec), true)
		if err != nil {
			c.logger.Warn("failed to publish clipped recipe to ghost",
				zap.String("recipe_id", rec.ID), zap.Error(err))
		} else {
			c.logger.Info("published clipped recipe", zap.String("recipe_id", rec.ID), zap.String("post_id", post.ID))
		}
	}
	return &rec, nil
}

type page struct {
	title   string
	content string
}

func (c *Clipper) fetchAndCleanHTML(ctx context.Context, rawURL string) (page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return page{}, err
	}
	req.Header.Set("User-Agent", "recipe-planner/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return page{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return page{}, fmt.Errorf("failed to fetch URL: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return page{}, err
	}

	// Structured recipe data, when the site publishes it, is the most
	// reliable source and is kept ahead of the page text.
	var sb strings.Builder
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		if data := strings.TrimSpace(s.Text()); strings.Contains(data, "Recipe") {
			sb.WriteString(data)
			sb.WriteString("\n\n")
		}
	})

	// Remove noise to save LLM tokens
	doc.Find("script, style, noscript, nav, header, footer, iframe, form, aside, ads, .ads, #ads, .comments").Remove()

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	sb.WriteString(strings.Join(strings.Fields(doc.Find("body").Text()), " "))
	content := sb.String()
	if len(content) > maxContentBytes {
		content = strings.ToValidUTF8(content[:maxContentBytes], "")
	}
	return page{title: title, content: content}, nil
}

func (c *Clipper) record(ctx context.Context, meta shared.AgentMeta) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordMeta(ctx, meta); err != nil {
		c.logger.Warn("failed to record extraction metrics", zap.Error(err))
	}
}

func formatToHTML(r recipe.Recipe) string {
	var sb strings.Builder
	if r.SourceURL != "" {
		src := html.EscapeString(r.SourceURL)
		fmt.Fprintf(&sb, "<p><i>Imported from: <a href=\"%s\">%s</a></i></p>", src, src)
	}

	sb.WriteString("<h2>Ingredients</h2><ul>")
	for _, ing := range r.Ingredients {
		fmt.Fprintf(&sb, "<li>%s</li>", html.EscapeString(ing.Text))
	}
	sb.WriteString("</ul>")

	sb.WriteString("<h2>Instructions</h2><ol>")
	for _, step := range r.Instructions {
		fmt.Fprintf(&sb, "<li>%s</li>", html.EscapeString(step))
	}
	sb.WriteString("</ol>")

	if r.PrepTime != "" || r.Servings != "" {
		sb.WriteString("<hr>")
		fmt.Fprintf(&sb, "<p><strong>Prep Time:</strong> %s | <strong>Servings:</strong> %s</p>",
			html.EscapeString(r.PrepTime), html.EscapeString(r.Servings))
	}
	return sb.String()
}
