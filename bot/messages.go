package bot

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hrygo/kulturbot/ledger"
)

// Menu command tokens. Incoming text is lowercased and trimmed before
// matching, so the tokens are the lowercase forms of the button labels.
const (
	cmdStart            = "начать"
	cmdFindSection      = "найти раздел"
	cmdFindPost         = "найти пост"
	cmdCombinedSearch   = "комбинированный поиск"
	cmdSiteQuestion     = "вопрос по сайту"
	cmdPostQuestion     = "вопрос по постам"
	cmdCombinedQuestion = "комбинированный вопрос"
	cmdStaff            = "для рабочих"

	cmdCreateWorker  = "создать рабочего"
	cmdOwnerMessages = "сообщения"
	cmdResetTokens   = "обнулить цену"
	cmdStats         = "статистика"

	cmdComposeMessage = "написать сообщение"
	cmdRefreshData    = "обновить данные"
)

// Menu is a transport-agnostic keyboard descriptor: rows of button labels.
// The transport decides how to render it.
type Menu struct {
	Rows [][]string
}

var (
	// MainMenu is offered in Idle and after every completed interaction.
	MainMenu = Menu{Rows: [][]string{
		{"Найти раздел", "Найти пост"},
		{"Вопрос по сайту", "Вопрос по постам"},
		{"Комбинированный поиск", "Комбинированный вопрос"},
		{"Для рабочих"},
	}}

	// OwnerMenu is offered to an authenticated owner.
	OwnerMenu = Menu{Rows: [][]string{
		{"Создать рабочего", "Сообщения"},
		{"Обнулить цену", "Статистика"},
	}}

	// WorkerMenu is offered to an authenticated worker.
	WorkerMenu = Menu{Rows: [][]string{
		{"Написать сообщение", "Обновить данные"},
	}}
)

// User-facing reply texts. The transport sends them verbatim.
const (
	msgWelcome        = "Добро пожаловать! Выберите режим поиска:"
	msgUseMenu        = "Пожалуйста, используйте кнопки для навигации."
	msgEnterQuery     = "Введите ваш поисковый запрос:"
	msgEnterQuestion  = "Введите ваш вопрос:"
	msgEnterCode      = "Введите код доступа:"
	msgEnterMessage   = "Введите ваше сообщение:"
	msgThrottled      = "Слишком много запросов. Пожалуйста, подождите немного."
	msgGenericError   = "Произошла ошибка при обработке сообщения. Попробуйте позже."
	msgSearchError    = "Произошла ошибка при поиске. Попробуйте позже."
	msgRefreshError   = "Ошибка при обновлении данных. Попробуйте позже."
	msgNothingFound   = "К сожалению, ничего подходящего не нашлось."
	msgBadAccessCode  = "Неверный код доступа. Попробуйте еще раз или обратитесь к администратору."
	msgUnlinkedWorker = "Ошибка: рабочий не привязан к администратору."
	msgOwnerMissing   = "Ошибка: администратор не найден."
	msgWorkerCreated  = "Рабочий создан! Код: %s"
	msgNoMessages     = "У вас пока нет сообщений."
	msgChooseAction   = "Выберите действие:"
	msgMessageSent    = "Сообщение успешно отправлено!"
	msgDataRefreshed  = "Данные успешно обновлены!"
	msgTokensReset    = "Счётчики токенов успешно обнулены!"
	msgQueryTooLong   = "Превышен лимит символов (%d). Пожалуйста, сократите запрос."

	msgSectionMatch = "Похоже, вам подойдёт раздел \"%s\"\nПрямая ссылка на раздел: %s"
	msgPostMatch    = "Найден релевантный пост:\n\n%s\n\nСодержание:\n%s\n\nСсылка: %s"
)

// Synthesis prompts.
const (
	compressSystemPrompt = "Обрабатывай запросы пользователей, извлекая из них ключевые слова, " +
		"которые четко отражают интересы. Сокращай ответы до одного-двух слов, " +
		"указывая только то, что пользователь хочет найти."

	answerSystemPrompt = "Ты - бот-помощник. Отвечай на вопросы пользователей, используя ТОЛЬКО " +
		"информацию из предоставленного текста, не используя информацию извне."

	answerUserPromptFmt = "Вот текст, на основе которого нужно ответить на вопрос:\n\n%s\n\nВопрос: %s"
)

const (
	// Provider prices shown in the usage report, rub per 1000 tokens.
	priceSynthesisPer1000 = "0,20"
	priceEmbeddingPer1000 = "0,01"
)

func formatReport(greeting string, r *ledger.Report) string {
	return fmt.Sprintf(
		"%s\n\nСтатистика:\nВсего запросов: %d\n"+
			"Цена за токены (сокращения): %s руб за 1000 токенов\n"+
			"Цена за токены (эмбеддинги): %s руб за 1000 токенов\n"+
			"Использовано токенов (сокращения): %d\n"+
			"Использовано токенов (эмбеддинги): %d",
		greeting, r.TotalRequests,
		priceSynthesisPer1000, priceEmbeddingPer1000,
		r.SynthesisTokens, r.EmbeddingTokens,
	)
}

const maxMessageLength = 4096

// splitMessage breaks a long text into transport-sized chunks, preferring
// sentence boundaries.
func splitMessage(text string, maxLength int) []string {
	if len(text) <= maxLength {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder
	for _, line := range strings.SplitAfter(text, "\n") {
		if current.Len()+len(line) > maxLength && current.Len() > 0 {
			chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
			current.Reset()
		}
		// A single oversized line is split hard, on a rune boundary.
		for len(line) > maxLength {
			cut := maxLength
			for cut > 0 && !utf8.RuneStart(line[cut]) {
				cut--
			}
			chunks = append(chunks, line[:cut])
			line = line[cut:]
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, strings.TrimRight(current.String(), "\n"))
	}
	return chunks
}
