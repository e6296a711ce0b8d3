package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"memeatlas/db"
	"memeatlas/internal/gallery"
	"memeatlas/internal/geocache"
	"memeatlas/internal/geolocation"
	"memeatlas/internal/location"
	"memeatlas/internal/meme"
	"memeatlas/internal/memegen"
	"memeatlas/internal/testutils"
	"memeatlas/models"
)

const (
	parisIP  = "203.0.113.10"
	berlinIP = "198.51.100.7"
)

// upstreams fakes the geolocation, chat and Imgflip APIs.
type upstreams struct {
	geo, chat, imgflip *httptest.Server

	mu        sync.Mutex
	chatCalls int
	captions  []string
	offered   []string
}

func newUpstreams(t *testing.T) *upstreams {
	u := &upstreams{}

	u.geo = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/json/") {
		case parisIP:
			fmt.Fprint(w, `{"status":"success","city":"Paris","regionName":"Île-de-France","country":"France"}`)
		case berlinIP:
			fmt.Fprint(w, `{"status":"success","city":"Berlin","regionName":"Berlin","country":"Germany"}`)
		default:
			fmt.Fprint(w, `{"status":"fail","message":"private range"}`)
		}
	}))
	t.Cleanup(u.geo.Close)

	u.imgflip = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get_memes":
			fmt.Fprint(w, `{"success":true,"data":{"memes":[
				{"id":"181913649","name":"Drake Hotline Bling","box_count":2},
				{"id":"87743020","name":"Two Buttons","box_count":2}]}}`)
		case "/caption_image":
			require.NoError(t, r.ParseForm())
			id := r.PostForm.Get("template_id")
			u.mu.Lock()
			u.captions = append(u.captions, id)
			u.mu.Unlock()
			fmt.Fprintf(w, `{"success":true,"data":{"url":"https://i.imgflip.com/%s.jpg"}}`, id)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(u.imgflip.Close)

	u.chat = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []memegen.Message `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		last := req.Messages[len(req.Messages)-1].Content

		u.mu.Lock()
		u.chatCalls++
		u.mu.Unlock()

		var content string
		if strings.Contains(last, "which meme template") {
			// Pick the first template offered.
			id := "87743020"
			if strings.Contains(last, "ID: 181913649") {
				id = "181913649"
			}
			u.mu.Lock()
			u.offered = append(u.offered, id)
			u.mu.Unlock()
			content = "meme: whatever\nmeme_id: " + id + "\nexplanation: it fits"
		} else {
			content = "text0: when it rains\ntext1: in Paris"
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	}))
	t.Cleanup(u.chat.Close)

	return u
}

func (u *upstreams) calls() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.chatCalls + len(u.captions)
}

type app struct {
	server    *testutils.TestServer
	up        *upstreams
	locations db.LocationRepository
	memes     db.MemeRepository
}

func newApp(t *testing.T) *app {
	t.Helper()
	cfg := testutils.GetTestConfig()
	up := newUpstreams(t)

	factory := testutils.SetupTestRepositoryFactory(t)
	locRepo := factory.NewLocationRepository()
	memeRepo := factory.NewMemeRepository()
	dbManager := db.NewDBManager()
	t.Cleanup(dbManager.Stop)

	resolver := geolocation.NewResolver(
		geocache.New(cfg.GeoCacheSize, cfg.GeoCacheTTL),
		geolocation.NewHTTPProvider(up.geo.URL+"/json/", nil),
	)
	registry := location.NewRegistry(locRepo, dbManager)
	generator := memegen.NewGenerator(
		memegen.NewChatClient(up.chat.URL, cfg.OpenAIKey, cfg.OpenAIModel),
		memegen.NewImgflipClient(up.imgflip.URL, cfg.ImgflipUsername, cfg.ImgflipPassword, nil),
	)
	memeService := meme.NewService(resolver, registry, generator, memeRepo, dbManager)

	handler, err := NewWebHandler(memeService, gallery.NewService(memeRepo), registry, resolver, cfg.SessionSecret)
	require.NoError(t, err)

	return &app{
		server:    testutils.NewTestServer(t, handler.SetupRoutes()),
		up:        up,
		locations: locRepo,
		memes:     memeRepo,
	}
}

func from(ip string) map[string]string {
	return map[string]string{"X-Forwarded-For": ip}
}

func TestGenerateMeme_EndToEnd(t *testing.T) {
	a := newApp(t)

	resp := a.server.POST("/generate_meme", map[string]string{
		"location": "Eiffel Tower",
		"thought":  "Rain again?",
	}, from(parisIP))

	var body memeResponse
	testutils.AssertJSONResponse(t, resp, http.StatusOK, &body)
	assert.Equal(t, "Meme generated successfully.", body.Status)
	require.NotNil(t, body.MemeHTML)
	assert.Contains(t, *body.MemeHTML, "Rain again?")
	assert.Contains(t, *body.MemeHTML, "https://i.imgflip.com/181913649.jpg")
	require.NotNil(t, body.MemeID)
	assert.Equal(t, "181913649", *body.MemeID)
	assert.False(t, body.Warning)

	loc, err := a.locations.FindByLabel(context.Background(), "Eiffel Tower")
	require.NoError(t, err)
	assert.Equal(t, "Paris", loc.City)

	stored, err := a.memes.FindRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "France", stored[0].Country)
	assert.Equal(t, parisIP, stored[0].IPAddress)
}

func TestGenerateMeme_Validation(t *testing.T) {
	a := newApp(t)

	t.Run("EmptyThought", func(t *testing.T) {
		resp := a.server.POST("/generate_meme", map[string]string{"location": "Home", "thought": ""}, nil)

		var body memeResponse
		testutils.AssertJSONResponse(t, resp, http.StatusOK, &body)
		assert.Equal(t, "Please enter your thought.", body.Status)
		assert.Nil(t, body.MemeHTML)
		assert.Zero(t, a.up.calls())
	})

	t.Run("OtherPlaceholder", func(t *testing.T) {
		resp := a.server.POST("/generate_meme", map[string]string{"location": models.OtherLocationOption, "thought": "hi"}, nil)

		var body memeResponse
		testutils.AssertJSONResponse(t, resp, http.StatusOK, &body)
		assert.Equal(t, "Please enter a location.", body.Status)
		assert.Zero(t, a.up.calls())
	})

	t.Run("UndecodableBody", func(t *testing.T) {
		resp := a.server.POST("/generate_meme", "{not json", nil)

		var body errorResponse
		testutils.AssertJSONResponse(t, resp, http.StatusBadRequest, &body)
		assert.NotEmpty(t, body.Error)
	})
}

func TestRegenerateMeme_ExcludesShownTemplates(t *testing.T) {
	a := newApp(t)
	req := map[string]string{"location": "Home", "thought": "Monday"}

	var first memeResponse
	testutils.AssertJSONResponse(t, a.server.POST("/generate_meme", req, from(parisIP)), http.StatusOK, &first)
	require.NotNil(t, first.MemeID)
	assert.Equal(t, "181913649", *first.MemeID)

	var second memeResponse
	testutils.AssertJSONResponse(t, a.server.POST("/regenerate_meme", req, from(parisIP)), http.StatusOK, &second)
	assert.Equal(t, "Meme regenerated successfully.", second.Status)
	require.NotNil(t, second.MemeID)
	assert.Equal(t, "87743020", *second.MemeID)

	var third memeResponse
	testutils.AssertJSONResponse(t, a.server.POST("/regenerate_meme", req, from(parisIP)), http.StatusOK, &third)
	assert.Equal(t, "Error: No more memes available", third.Status)
	assert.Nil(t, third.MemeHTML)
	assert.Nil(t, third.MemeID)
}

func TestPreviousMemes_ScopedByGeography(t *testing.T) {
	a := newApp(t)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, m := range []*models.MemeRecord{
		testutils.CreateTestMeme("paris", testutils.ParisGeo(), base),
		testutils.CreateTestMeme("berlin", testutils.BerlinGeo(), base.Add(time.Minute)),
	} {
		_, err := a.memes.Create(context.Background(), m)
		require.NoError(t, err, i)
	}

	t.Run("Paris", func(t *testing.T) {
		var body gallery.Result
		testutils.AssertJSONResponse(t, a.server.GETWithHeaders("/get_previous_memes", from(parisIP)), http.StatusOK, &body)
		assert.Equal(t, gallery.LevelCity, body.Level)
		require.Len(t, body.Memes, 1)
		assert.Equal(t, "paris", body.Memes[0].Thought)
	})

	t.Run("UnresolvableIPGetsGlobal", func(t *testing.T) {
		var body gallery.Result
		testutils.AssertJSONResponse(t, a.server.GET("/get_previous_memes"), http.StatusOK, &body)
		assert.Equal(t, gallery.LevelGlobal, body.Level)
		require.Len(t, body.Memes, 2)
		assert.Equal(t, "berlin", body.Memes[0].Thought)
	})
}

func TestIndex_GalleryHeadingFollowsLevel(t *testing.T) {
	a := newApp(t)

	resp := a.server.GET("/")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, `id="gallery-heading"`)
	assert.Contains(t, html, "galleryHeadings[data.level]")
	for _, level := range []gallery.Level{
		gallery.LevelCity, gallery.LevelRegion, gallery.LevelCountry, gallery.LevelGlobal, gallery.LevelEmpty,
	} {
		assert.Contains(t, html, string(level)+": '", "heading for %s", level)
	}
}

func TestPreviousMemes_HidesSubmitterAddress(t *testing.T) {
	a := newApp(t)
	_, err := a.memes.Create(context.Background(), testutils.CreateTestMeme("paris", testutils.ParisGeo(), time.Now()))
	require.NoError(t, err)

	resp := a.server.GETWithHeaders("/get_previous_memes", from(berlinIP))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"thought":"paris"`)
	assert.NotContains(t, string(body), "ip_address")
	assert.NotContains(t, string(body), parisIP)
}

func TestIndex_ListsNearbyLocations(t *testing.T) {
	a := newApp(t)
	m := db.NewDBManager()
	t.Cleanup(m.Stop)
	reg := location.NewRegistry(a.locations, m)
	_, err := reg.Upsert(context.Background(), "Louvre", "Paris", "Île-de-France", "France")
	require.NoError(t, err)
	_, err = reg.Upsert(context.Background(), "Brandenburg Gate", "Berlin", "Berlin", "Germany")
	require.NoError(t, err)

	resp := a.server.GETWithHeaders("/", from(parisIP))
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	page, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	html := string(page)
	assert.Contains(t, html, `<option value="Louvre">Louvre</option>`)
	assert.NotContains(t, html, "Brandenburg Gate")
	assert.Contains(t, html, "Other (specify below)")
}

func TestHealthzAndMetrics(t *testing.T) {
	a := newApp(t)

	var health map[string]string
	testutils.AssertJSONResponse(t, a.server.GET("/healthz"), http.StatusOK, &health)
	assert.Equal(t, "ok", health["status"])

	resp := a.server.GET("/metrics")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "memeatlas_")
}

func TestMergeIDs(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, mergeIDs([]string{"1", "2"}, []string{"2", " ", "3"}))
	assert.Empty(t, mergeIDs(nil, nil))
}
