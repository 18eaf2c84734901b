package content

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hrygo/kulturbot/content/extract"
)

func TestDefaultCatalogIsValid(t *testing.T) {
	catalog := DefaultCatalog()
	require.NotEmpty(t, catalog)
	require.NoError(t, ValidateCatalog(catalog))

	temporal := 0
	for _, src := range catalog {
		if src.Temporal {
			temporal++
		}
	}
	require.NotZero(t, temporal, "the default catalog must track time-sensitive sections")
}

func TestLoadCatalogFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
sections:
  - key: afisha
    name: Афиша
    description: Предстоящие мероприятия
    url: https://example.org/afisha
    user_url: https://example.org/afisha
    mode: events
    temporal: true
  - key: contacts
    name: Контакты
    description: Телефоны и адрес
    url: https://example.org/contacts
    user_url: https://example.org/contacts
    mode: phones
`), 0o600))

	catalog, err := LoadCatalog(path)
	require.NoError(t, err)
	require.Len(t, catalog, 2)
	require.Equal(t, "afisha", catalog[0].Key)
	require.Equal(t, extract.ModeEvents, catalog[0].Mode)
	require.True(t, catalog[0].Temporal)
	require.Equal(t, extract.ModePhones, catalog[1].Mode)
}

func TestLoadCatalogEmptyPathUsesDefault(t *testing.T) {
	catalog, err := LoadCatalog("")
	require.NoError(t, err)
	require.Equal(t, DefaultCatalog(), catalog)
}

func TestValidateCatalogRejectsDuplicates(t *testing.T) {
	err := ValidateCatalog([]Source{
		{Key: "a", Name: "A", URL: "https://example.org/a", Mode: extract.ModeNews},
		{Key: "a", Name: "B", URL: "https://example.org/b", Mode: extract.ModeNews},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate")
}

func TestValidateCatalogRejectsUnknownMode(t *testing.T) {
	err := ValidateCatalog([]Source{
		{Key: "a", Name: "A", URL: "https://example.org/a", Mode: extract.Mode("bogus")},
	})
	require.Error(t, err)
}

func TestValidateCatalogRejectsMissingFields(t *testing.T) {
	err := ValidateCatalog([]Source{{Key: "a", Mode: extract.ModeNews}})
	require.Error(t, err)
}
