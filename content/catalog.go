package content

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/hrygo/kulturbot/content/extract"
)

// Source describes one tracked website section.
type Source struct {
	Key         string       `mapstructure:"key"`
	Name        string       `mapstructure:"name"`
	Description string       `mapstructure:"description"`
	URL         string       `mapstructure:"url"`
	UserURL     string       `mapstructure:"user_url"`
	ImageURL    string       `mapstructure:"image_url"`
	Mode        extract.Mode `mapstructure:"mode"`
	// Temporal marks time-sensitive sections (events, news, listings).
	// Questions answered from a temporal section get the concatenated text
	// of all temporal sections as synthesis context.
	Temporal bool `mapstructure:"temporal"`
}

// DefaultCatalog returns the built-in section catalog of the venue site.
func DefaultCatalog() []Source {
	return []Source{
		{
			Key:         "events",
			Name:        "События",
			Description: "Новые концерты, выступления",
			URL:         "https://kdk-krasnoturinsk.ru",
			UserURL:     "https://kdk-krasnoturinsk.ru/#events-slider",
			ImageURL:    "https://i.postimg.cc/2q2LC1hn/image.png",
			Mode:        extract.ModeEvents,
			Temporal:    true,
		},
		{
			Key:         "news",
			Name:        "Новости",
			Description: "происшествия, опросы",
			URL:         "https://kdk-krasnoturinsk.ru",
			UserURL:     "https://kdk-krasnoturinsk.ru/#index-greetings",
			ImageURL:    "https://i.postimg.cc/Kk7GmVdw/jggj.png",
			Mode:        extract.ModeNews,
			Temporal:    true,
		},
		{
			Key:         "calendar",
			Name:        "Мероприятия",
			Description: "Новые мероприятия",
			URL:         "https://kdk-krasnoturinsk.ru",
			UserURL:     "https://kdk-krasnoturinsk.ru/#c-left-menu",
			ImageURL:    "https://i.postimg.cc/KjCnJwLm/six.png",
			Mode:        extract.ModeCalendar,
			Temporal:    true,
		},
		{
			Key:         "links",
			Name:        "Ресурсы, Ссылки",
			Description: "Ссылки на ресурсы",
			URL:         "https://kdk-krasnoturinsk.ru",
			UserURL:     "https://kdk-krasnoturinsk.ru/#logos-gallery",
			ImageURL:    "https://i.postimg.cc/h4dmbSMd/oo.png",
			Mode:        extract.ModeLinks,
		},
		{
			Key:         "structure",
			Name:        "Структура",
			Description: "Здания ГДК",
			URL:         "https://kdk-krasnoturinsk.ru/structure",
			UserURL:     "https://kdk-krasnoturinsk.ru/structure/#content",
			ImageURL:    "https://i.postimg.cc/PrsJQYFW/io.png",
			Mode:        extract.ModeArticle,
		},
		{
			Key:         "documents",
			Name:        "Учредительные документы",
			Description: "файлы",
			URL:         "https://kdk-krasnoturinsk.ru/activities",
			UserURL:     "https://kdk-krasnoturinsk.ru/activities/#content",
			ImageURL:    "https://i.postimg.cc/TY0y2hCn/seven.png",
			Mode:        extract.ModeArticle,
		},
		{
			Key:         "archive",
			Name:        "Архив событий",
			Description: "Прошедшие события",
			URL:         "https://kdk-krasnoturinsk.ru/documents",
			UserURL:     "https://kdk-krasnoturinsk.ru/documents/#content",
			ImageURL:    "https://i.postimg.cc/9fgms7XQ/ei.png",
			Mode:        extract.ModeArticle,
		},
		{
			Key:         "posters",
			Name:        "Афиша",
			Description: "Афиши ГДК",
			URL:         "https://kdk-krasnoturinsk.ru/servicies",
			UserURL:     "https://kdk-krasnoturinsk.ru/servicies/#content",
			ImageURL:    "https://i.postimg.cc/pVYpWkZm/ten.png",
			Mode:        extract.ModeArticle,
			Temporal:    true,
		},
		{
			Key:         "phones",
			Name:        "Телефоны",
			Description: "Контакты",
			URL:         "https://kdk-krasnoturinsk.ru/contacts",
			UserURL:     "https://kdk-krasnoturinsk.ru/contacts/#content",
			ImageURL:    "https://i.postimg.cc/0Q7d2mW9/elev.png",
			Mode:        extract.ModePhones,
		},
		{
			Key:         "collectives",
			Name:        "Коллективы",
			Description: "Коллективы ГДК, расписания занятий, награды",
			URL:         "https://kdk-krasnoturinsk.ru/media",
			UserURL:     "https://kdk-krasnoturinsk.ru/media/#content",
			ImageURL:    "https://i.postimg.cc/yxZhxGVg/twel.png",
			Mode:        extract.ModeArticle,
		},
	}
}

// LoadCatalog reads a section catalog from a YAML file. An empty path
// returns the built-in default catalog.
func LoadCatalog(path string) ([]Source, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var sources []Source
	if err := v.UnmarshalKey("sections", &sources); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("catalog %s defines no sections", path)
	}

	if err := ValidateCatalog(sources); err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return sources, nil
}

// ValidateCatalog rejects duplicate keys and unknown extraction modes before
// anything is fetched.
func ValidateCatalog(sources []Source) error {
	seen := make(map[string]struct{}, len(sources))
	for _, src := range sources {
		if src.Key == "" || src.Name == "" || src.URL == "" {
			return fmt.Errorf("section %q: key, name and url are required", src.Key)
		}
		if _, dup := seen[src.Key]; dup {
			return fmt.Errorf("duplicate section key %q", src.Key)
		}
		seen[src.Key] = struct{}{}
		if err := src.Mode.Validate(); err != nil {
			return fmt.Errorf("section %q: %w", src.Key, err)
		}
	}
	return nil
}
