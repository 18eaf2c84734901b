package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func serveHTML(t *testing.T, pages map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, page)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestModeValidate(t *testing.T) {
	for _, mode := range []Mode{ModeEvents, ModeNews, ModeCalendar, ModeLinks, ModePhones, ModeArticle} {
		if err := mode.Validate(); err != nil {
			t.Errorf("mode %q should be valid: %v", mode, err)
		}
	}
	require.ErrorIs(t, Mode("bogus").Validate(), ErrUnknownMode)
}

func TestFetchTextUnknownMode(t *testing.T) {
	e := New(nil)
	_, err := e.FetchText(context.Background(), "https://example.org", Mode("bogus"))
	require.ErrorIs(t, err, ErrUnknownMode)
}

func TestExtractEvents(t *testing.T) {
	soon := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	farAway := time.Now().AddDate(0, 3, 0).Format("2006-01-02")
	page := fmt.Sprintf(`<html><body>
		<div id="events-slider">
			<a class="one-link"><span class="caption">Концерт оркестра</span><span class="date">%s</span></a>
			<a class="one-link"><span class="caption">Далёкий фестиваль</span><span class="date">%s</span></a>
			<a class="one-link"><span class="caption">Без даты</span></a>
		</div>
	</body></html>`, soon, farAway)
	srv := serveHTML(t, map[string]string{"/events": page})

	e := New(srv.Client())
	text, err := e.FetchText(context.Background(), srv.URL+"/events", ModeEvents)
	require.NoError(t, err)
	require.Contains(t, text, "Событие: Концерт оркестра, дата: "+soon)
	require.NotContains(t, text, "Далёкий фестиваль", "events past one month ahead are dropped")
	require.NotContains(t, text, "Без даты")
}

func TestExtractNewsLimited(t *testing.T) {
	page := `<html><body><div class="item-content">`
	for i := 1; i <= 10; i++ {
		page += fmt.Sprintf("<p>новость номер %d</p>", i)
	}
	page += `</div></body></html>`
	srv := serveHTML(t, map[string]string{"/news": page})

	e := New(srv.Client())
	text, err := e.FetchText(context.Background(), srv.URL+"/news", ModeNews)
	require.NoError(t, err)
	require.Contains(t, text, "Новость: новость номер 1;")
	require.Contains(t, text, "Новость: новость номер 7;")
	require.NotContains(t, text, "новость номер 8", "news is capped")
}

func TestExtractCalendarFollowsDayLinks(t *testing.T) {
	srv := serveHTML(t, map[string]string{
		"/calendar": `<html><body><table><tr>
			<td class="calendar-cell"><a href="/day/15">15</a></td>
		</tr></table></body></html>`,
		"/day/15": `<html><body>
			<div class="list-item"><span class="item">Спектакль</span></div>
			<div class="list-item"><span class="item">Выставка</span></div>
		</body></html>`,
	})

	e := New(srv.Client())
	text, err := e.FetchText(context.Background(), srv.URL+"/calendar", ModeCalendar)
	require.NoError(t, err)
	require.Equal(t, "Дата: 15, События: Спектакль, Выставка", text)
}

func TestExtractLinks(t *testing.T) {
	srv := serveHTML(t, map[string]string{
		"/links": `<html><body>
			<div id="logos-gallery">
				<a class="one-link"><span class="caption">Минкульт</span><span class="link">culture.gov</span></a>
			</div>
		</body></html>`,
	})

	e := New(srv.Client())
	text, err := e.FetchText(context.Background(), srv.URL+"/links", ModeLinks)
	require.NoError(t, err)
	require.Equal(t, "Ресурс: Минкульт, Ссылка: culture.gov;", text)
}

func TestExtractPhones(t *testing.T) {
	srv := serveHTML(t, map[string]string{
		"/contacts": `<html><body>
			<span class="phone">Касса: +7 900 000-00-01</span>
			<span class="phone">Администратор: +7 900 000-00-02</span>
		</body></html>`,
	})

	e := New(srv.Client())
	text, err := e.FetchText(context.Background(), srv.URL+"/contacts", ModePhones)
	require.NoError(t, err)
	require.Equal(t, "Касса: +7 900 000-00-01; Администратор: +7 900 000-00-02", text)
}

func TestExtractArticle(t *testing.T) {
	srv := serveHTML(t, map[string]string{
		"/about": `<html><head><title>О нас</title></head><body>
			<article><h1>О дворце культуры</h1>
			<p>Дворец культуры открыт в 1960 году. Здесь работают десятки творческих коллективов.</p>
			<p>Ежегодно проходит более ста мероприятий для жителей города.</p>
			</article>
		</body></html>`,
	})

	e := New(srv.Client())
	text, err := e.FetchText(context.Background(), srv.URL+"/about", ModeArticle)
	require.NoError(t, err)
	require.Contains(t, text, "открыт в 1960 году")
	require.Contains(t, text, "более ста мероприятий")
}

func TestFetchNon200Fails(t *testing.T) {
	srv := serveHTML(t, map[string]string{}) // everything 404s
	e := New(srv.Client())
	_, err := e.FetchText(context.Background(), srv.URL+"/missing", ModeNews)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status 404")
}
