package telegram

import (
	"html/template"
	"log/slog"
	"strings"

	tb "gopkg.in/telebot.v3"

	"github.com/Roma7-7-7/livestream-notifier/internal/metrics"
)

//go:generate mockgen -package mocks -destination mocks/telebot.go -mock_names Context=MockTelebotContext gopkg.in/telebot.v3/ Context

//go:generate mockgen -package mocks -destination mocks/subscriptions.go . Subscriptions

const (
	msgSubscribed        = "Successfully subscribed chat to livestream announcements. You can unsubscribe again by using /unsubscribe"
	msgAlreadySubscribed = "You've already subscribed this chat to livestream announcements. You can unsubscribe again by using /unsubscribe"
	msgUnsubscribed      = "You've successfully unsubscribed this chat from livestream announcements. You can subscribe again by using /subscribe"
	msgNotSubscribed     = "You are not subscribed to livestream announcements, so you can't unsubscribe from them. If you meant to subscribe, you can do so by using /subscribe"
	msgChooseLinks       = "Select the module you wish to see links for"
	genericErrorMsg      = "Something went wrong. Please try again later."
)

const (
	outcomeOK    = "ok"
	outcomeNoop  = "noop"
	outcomeError = "error"
)

type Subscriptions interface {
	IsSubscribed(chatID int64) (bool, error)
	Subscribe(chatID int64) (bool, error)
	Unsubscribe(chatID int64) (bool, error)
}

type Handler struct {
	subscriptions Subscriptions

	links     *tb.ReplyMarkup
	linkMenus map[string]string
	log       *slog.Logger
}

func NewHandler(subscriptions Subscriptions, log *slog.Logger) *Handler {
	return &Handler{
		subscriptions: subscriptions,
		links:         newLinksMarkup(),
		linkMenus:     renderLinkMenus(),
		log:           log.With("component", "handler"),
	}
}

// Start subscribes the chat like Subscribe, answering from a read when it is already subscribed.
func (h *Handler) Start(c tb.Context) error {
	chatID, ok := chatIDOf(c)
	if !ok {
		h.log.Debug("command without chat", "command", "start")
		return nil
	}

	subscribed, err := h.subscriptions.IsSubscribed(chatID)
	if err != nil {
		h.log.Error("failed to check subscription",
			"error", err,
			"chatID", chatID)
		metrics.CommandsTotal.WithLabelValues("start", outcomeError).Inc()
		return c.Send(genericErrorMsg)
	}
	if subscribed {
		h.log.Debug("chat already subscribed", "chatID", chatID)
		metrics.CommandsTotal.WithLabelValues("start", outcomeNoop).Inc()
		return c.Send(msgAlreadySubscribed)
	}

	return h.subscribe(c, "start", chatID)
}

func (h *Handler) Subscribe(c tb.Context) error {
	chatID, ok := chatIDOf(c)
	if !ok {
		h.log.Debug("command without chat", "command", "subscribe")
		return nil
	}

	return h.subscribe(c, "subscribe", chatID)
}

func (h *Handler) subscribe(c tb.Context, command string, chatID int64) error {
	added, err := h.subscriptions.Subscribe(chatID)
	if err != nil {
		h.log.Error("failed to subscribe",
			"error", err,
			"chatID", chatID)
		metrics.CommandsTotal.WithLabelValues(command, outcomeError).Inc()
		return c.Send(genericErrorMsg)
	}

	if !added {
		h.log.Debug("chat already subscribed", "chatID", chatID)
		metrics.CommandsTotal.WithLabelValues(command, outcomeNoop).Inc()
		return c.Send(msgAlreadySubscribed)
	}

	h.log.Info("chat subscribed", "chatID", chatID)
	metrics.CommandsTotal.WithLabelValues(command, outcomeOK).Inc()
	return c.Send(msgSubscribed)
}

func (h *Handler) Unsubscribe(c tb.Context) error {
	chatID, ok := chatIDOf(c)
	if !ok {
		h.log.Debug("command without chat", "command", "unsubscribe")
		return nil
	}

	removed, err := h.subscriptions.Unsubscribe(chatID)
	if err != nil {
		h.log.Error("failed to unsubscribe",
			"error", err,
			"chatID", chatID)
		metrics.CommandsTotal.WithLabelValues("unsubscribe", outcomeError).Inc()
		return c.Send(genericErrorMsg)
	}

	if !removed {
		h.log.Debug("chat is not subscribed", "chatID", chatID)
		metrics.CommandsTotal.WithLabelValues("unsubscribe", outcomeNoop).Inc()
		return c.Send(msgNotSubscribed)
	}

	h.log.Info("chat unsubscribed", "chatID", chatID)
	metrics.CommandsTotal.WithLabelValues("unsubscribe", outcomeOK).Inc()
	return c.Send(msgUnsubscribed)
}

func (h *Handler) Links(c tb.Context) error {
	metrics.CommandsTotal.WithLabelValues("links", outcomeOK).Inc()
	return c.Send(msgChooseLinks, h.links)
}

func (h *Handler) Callback(c tb.Context) error {
	callback := c.Callback()
	if callback == nil {
		h.log.Debug("callback router called with nil callback")
		return nil
	}

	// Respond to callback first to remove loading state
	if err := c.Respond(); err != nil {
		h.log.Warn("failed to respond to callback", "error", err)
	}

	// Data buttons are sent as "\f<unique>|<data>"
	data := strings.TrimPrefix(callback.Data, "\f")
	if i := strings.IndexByte(data, '|'); i >= 0 {
		data = data[:i]
	}
	if data == "" {
		data = callback.Unique
	}

	menu, ok := h.linkMenus[data]
	if !ok {
		h.log.Warn("no handler matched for callback", "data", callback.Data)
		metrics.CommandsTotal.WithLabelValues("callback", outcomeNoop).Inc()
		return nil
	}

	h.log.Debug("sending links", "menu", data)
	metrics.CommandsTotal.WithLabelValues("callback", outcomeOK).Inc()
	return c.Send(menu, tb.ModeHTML, tb.NoPreview)
}

func chatIDOf(c tb.Context) (int64, bool) {
	if chat := c.Chat(); chat != nil {
		return chat.ID, true
	}
	if sender := c.Sender(); sender != nil {
		return sender.ID, true
	}
	return 0, false
}

type (
	link struct {
		Name string
		URL  template.URL
	}

	linkMenu struct {
		Unique string
		Button string
		Title  string
		Links  []link
	}
)

//nolint:gochecknoglobals // static content
var linkMenus = [][]linkMenu{
	{
		{
			Unique: "links_uzh",
			Button: "UZH Websites",
			Title:  "The following UZH websites are relevant:",
			Links: []link{
				{Name: "Homepage", URL: "https://www.uzh.ch/de.html"},
				{Name: "Webmail", URL: "https://webmail.uzh.ch/"},
				{Name: "Launchpad", URL: "https://studentservices.uzh.ch/uzh/launchpad/#Shell-home"},
				{Name: "Module Booking", URL: "https://studentservices.uzh.ch/mb"},
				{Name: "Swisscovery", URL: "https://swisscovery.slsp.ch/discovery/search?vid=41SLSP_UZB:VU1_UNION&lang=en"},
			},
		},
		{
			Unique: "links_olat",
			Button: "OLAT",
			Links: []link{
				{Name: "OLAT", URL: "https://lms.uzh.ch/auth/MyCoursesSite/0/Favorits/0"},
			},
		},
	},
	{
		{
			Unique: "links_mat183",
			Button: "MAT 183",
			Title:  "The following links are important for MAT 183:",
			Links: []link{
				{Name: "OLAT", URL: "https://lms.uzh.ch/auth/RepositoryEntry/16974184862/CourseNode/103233511448483"},
				{Name: "Website", URL: "https://www.math.uzh.ch/mat183.1"},
				{Name: "Exercises", URL: "https://w3.math.uzh.ch/my/index.php?id=lecture"},
				{Name: "Slack Forum", URL: "https://app.slack.com/client/T01LQ47LN3H/D01NUBXNCDR"},
			},
		},
		{
			Unique: "links_phy127",
			Button: "PHY 127",
			Title:  "The following links are important for PHY 127:",
			Links: []link{
				{Name: "OLAT", URL: "https://lms.uzh.ch/auth/RepositoryEntry/16955310089/CourseNode/103233523024807"},
				{Name: "Website", URL: "https://www.physik.uzh.ch/de/lehre/PHY127/FS2021.html"},
			},
		},
	},
	{
		{
			Unique: "links_discord",
			Button: "Discord",
			Title:  "The following Discord servers are used by students:",
			Links: []link{
				{Name: "Biomed Erstis", URL: "https://discord.gg/kNhWwUGt8a"},
				{Name: "BIUZ Biomedizin Server", URL: "https://discord.gg/Dt454GHdDE"},
				{Name: "UZH Students", URL: "https://discord.gg/XJU44tdZr3"},
			},
		},
	},
}

//nolint:gochecknoglobals // static content
var linkMenuTemplate = template.Must(template.New("links").Parse(
	`{{if .Title}}{{.Title}}{{range .Links}}
- <a href="{{.URL}}">{{.Name}}</a>{{end}}{{else}}{{range .Links}}<a href="{{.URL}}">{{.Name}}</a>{{end}}{{end}}`))

func renderLinkMenus() map[string]string {
	res := make(map[string]string)
	for _, row := range linkMenus {
		for _, menu := range row {
			var sb strings.Builder
			// static content, cannot fail
			if err := linkMenuTemplate.Execute(&sb, menu); err != nil {
				panic(err)
			}
			res[menu.Unique] = sb.String()
		}
	}
	return res
}

func newLinksMarkup() *tb.ReplyMarkup {
	markup := &tb.ReplyMarkup{}
	rows := make([]tb.Row, 0, len(linkMenus))
	for _, row := range linkMenus {
		btns := make([]tb.Btn, 0, len(row))
		for _, menu := range row {
			btns = append(btns, markup.Data(menu.Button, menu.Unique))
		}
		rows = append(rows, markup.Row(btns...))
	}
	markup.Inline(rows...)
	return markup
}
