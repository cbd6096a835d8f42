package telegram_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	tb "gopkg.in/telebot.v3"

	"github.com/Roma7-7-7/livestream-notifier/internal/telegram"
	"github.com/Roma7-7-7/livestream-notifier/internal/telegram/mocks"
)

const (
	chatID = int64(-100123)

	subscribedMsg        = "Successfully subscribed chat to livestream announcements. You can unsubscribe again by using /unsubscribe"
	alreadySubscribedMsg = "You've already subscribed this chat to livestream announcements. You can unsubscribe again by using /unsubscribe"
	unsubscribedMsg      = "You've successfully unsubscribed this chat from livestream announcements. You can subscribe again by using /subscribe"
	notSubscribedMsg     = "You are not subscribed to livestream announcements, so you can't unsubscribe from them. If you meant to subscribe, you can do so by using /subscribe"
	errorMsg             = "Something went wrong. Please try again later."
)

var (
	defaultChat   = &tb.Chat{ID: chatID}
	defaultSender = &tb.User{ID: 77}
)

func chatContext(ctrl *gomock.Controller, reply string, sendErr error) tb.Context {
	ctx := mocks.NewMockTelebotContext(ctrl)
	ctx.EXPECT().Chat().Return(defaultChat).AnyTimes()
	ctx.EXPECT().Send(reply).Return(sendErr)
	return ctx
}

func noChatContext(ctrl *gomock.Controller) tb.Context {
	ctx := mocks.NewMockTelebotContext(ctrl)
	ctx.EXPECT().Chat().Return(nil)
	ctx.EXPECT().Sender().Return(nil)
	return ctx
}

func TestHandler_Start(t *testing.T) {
	type fields struct {
		subscriptions func(*gomock.Controller) telegram.Subscriptions
	}
	type args struct {
		ctx func(*gomock.Controller) tb.Context
	}
	tests := []struct {
		name    string
		fields  fields
		args    args
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name: "new_chat",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().IsSubscribed(chatID).Return(false, nil)
					res.EXPECT().Subscribe(chatID).Return(true, nil)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					return chatContext(ctrl, subscribedMsg, nil)
				},
			},
			wantErr: assert.NoError,
		},
		{
			name: "already_subscribed_skips_write",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().IsSubscribed(chatID).Return(true, nil)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					return chatContext(ctrl, alreadySubscribedMsg, nil)
				},
			},
			wantErr: assert.NoError,
		},
		{
			name: "subscribed_concurrently",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().IsSubscribed(chatID).Return(false, nil)
					res.EXPECT().Subscribe(chatID).Return(false, nil)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					return chatContext(ctrl, alreadySubscribedMsg, nil)
				},
			},
			wantErr: assert.NoError,
		},
		{
			name: "error_is_subscribed",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().IsSubscribed(chatID).Return(false, assert.AnError)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					return chatContext(ctrl, errorMsg, nil)
				},
			},
			wantErr: assert.NoError,
		},
		{
			name: "error_subscribe",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().IsSubscribed(chatID).Return(false, nil)
					res.EXPECT().Subscribe(chatID).Return(false, assert.AnError)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					return chatContext(ctrl, errorMsg, nil)
				},
			},
			wantErr: assert.NoError,
		},
		{
			name: "no_chat",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					return mocks.NewMockSubscriptions(ctrl)
				},
			},
			args: args{
				ctx: noChatContext,
			},
			wantErr: assert.NoError,
		},
		{
			name: "error_send",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().IsSubscribed(chatID).Return(true, nil)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					return chatContext(ctrl, alreadySubscribedMsg, assert.AnError)
				},
			},
			wantErr: assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			h := telegram.NewHandler(tt.fields.subscriptions(ctrl), slog.New(slog.DiscardHandler))
			tt.wantErr(t, h.Start(tt.args.ctx(ctrl)))
		})
	}
}

func TestHandler_Subscribe(t *testing.T) {
	type fields struct {
		subscriptions func(*gomock.Controller) telegram.Subscriptions
	}
	type args struct {
		ctx func(*gomock.Controller) tb.Context
	}
	tests := []struct {
		name    string
		fields  fields
		args    args
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name: "new_chat",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().Subscribe(chatID).Return(true, nil)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					return chatContext(ctrl, subscribedMsg, nil)
				},
			},
			wantErr: assert.NoError,
		},
		{
			name: "already_subscribed",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().Subscribe(chatID).Return(false, nil)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					return chatContext(ctrl, alreadySubscribedMsg, nil)
				},
			},
			wantErr: assert.NoError,
		},
		{
			name: "storage_error",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().Subscribe(chatID).Return(false, assert.AnError)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					return chatContext(ctrl, errorMsg, nil)
				},
			},
			wantErr: assert.NoError,
		},
		{
			name: "sender_fallback",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().Subscribe(defaultSender.ID).Return(true, nil)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					ctx := mocks.NewMockTelebotContext(ctrl)
					ctx.EXPECT().Chat().Return(nil)
					ctx.EXPECT().Sender().Return(defaultSender)
					ctx.EXPECT().Send(subscribedMsg).Return(nil)
					return ctx
				},
			},
			wantErr: assert.NoError,
		},
		{
			name: "no_chat",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					return mocks.NewMockSubscriptions(ctrl)
				},
			},
			args: args{
				ctx: noChatContext,
			},
			wantErr: assert.NoError,
		},
		{
			name: "error_send",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().Subscribe(chatID).Return(true, nil)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					return chatContext(ctrl, subscribedMsg, assert.AnError)
				},
			},
			wantErr: assert.Error,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			h := telegram.NewHandler(tt.fields.subscriptions(ctrl), slog.New(slog.DiscardHandler))
			tt.wantErr(t, h.Subscribe(tt.args.ctx(ctrl)))
		})
	}
}

func TestHandler_Unsubscribe(t *testing.T) {
	type fields struct {
		subscriptions func(*gomock.Controller) telegram.Subscriptions
	}
	type args struct {
		ctx func(*gomock.Controller) tb.Context
	}
	tests := []struct {
		name    string
		fields  fields
		args    args
		wantErr assert.ErrorAssertionFunc
	}{
		{
			name: "unsubscribed",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().Unsubscribe(chatID).Return(true, nil)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					return chatContext(ctrl, unsubscribedMsg, nil)
				},
			},
			wantErr: assert.NoError,
		},
		{
			name: "not_subscribed",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().Unsubscribe(chatID).Return(false, nil)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					return chatContext(ctrl, notSubscribedMsg, nil)
				},
			},
			wantErr: assert.NoError,
		},
		{
			name: "storage_error",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					res := mocks.NewMockSubscriptions(ctrl)
					res.EXPECT().Unsubscribe(chatID).Return(false, assert.AnError)
					return res
				},
			},
			args: args{
				ctx: func(ctrl *gomock.Controller) tb.Context {
					return chatContext(ctrl, errorMsg, nil)
				},
			},
			wantErr: assert.NoError,
		},
		{
			name: "no_chat",
			fields: fields{
				subscriptions: func(ctrl *gomock.Controller) telegram.Subscriptions {
					return mocks.NewMockSubscriptions(ctrl)
				},
			},
			args: args{
				ctx: noChatContext,
			},
			wantErr: assert.NoError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			h := telegram.NewHandler(tt.fields.subscriptions(ctrl), slog.New(slog.DiscardHandler))
			tt.wantErr(t, h.Unsubscribe(tt.args.ctx(ctrl)))
		})
	}
}

func TestHandler_Links(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var markup *tb.ReplyMarkup
	ctx := mocks.NewMockTelebotContext(ctrl)
	ctx.EXPECT().Send("Select the module you wish to see links for", gomock.Any()).
		DoAndReturn(func(_ any, opts ...any) error {
			require.Len(t, opts, 1)
			var ok bool
			markup, ok = opts[0].(*tb.ReplyMarkup)
			require.True(t, ok)
			return nil
		})

	h := telegram.NewHandler(mocks.NewMockSubscriptions(ctrl), slog.New(slog.DiscardHandler))
	require.NoError(t, h.Links(ctx))
	require.NotNil(t, markup)

	var buttons []string
	var uniques []string
	for _, row := range markup.InlineKeyboard {
		for _, btn := range row {
			buttons = append(buttons, btn.Text)
			uniques = append(uniques, btn.Unique)
		}
	}
	assert.Equal(t, []string{"UZH Websites", "OLAT", "MAT 183", "PHY 127", "Discord"}, buttons)
	assert.Len(t, markup.InlineKeyboard, 3)
	assert.Equal(t, []string{"links_uzh", "links_olat", "links_mat183", "links_phy127", "links_discord"}, uniques)
}

func TestHandler_Callback(t *testing.T) {
	type args struct {
		callback   *tb.Callback
		respondErr error
	}
	tests := []struct {
		name         string
		args         args
		wantContains []string
		wantNothing  bool
	}{
		{
			name: "uzh_websites",
			args: args{callback: &tb.Callback{Data: "\flinks_uzh"}},
			wantContains: []string{
				"The following UZH websites are relevant:\n- ",
				`<a href="https://www.uzh.ch/de.html">Homepage</a>`,
				`<a href="https://webmail.uzh.ch/">Webmail</a>`,
				`<a href="https://studentservices.uzh.ch/mb">Module Booking</a>`,
				"&amp;lang=en",
			},
		},
		{
			name:         "olat",
			args:         args{callback: &tb.Callback{Data: "\flinks_olat"}},
			wantContains: []string{`<a href="https://lms.uzh.ch/auth/MyCoursesSite/0/Favorits/0">OLAT</a>`},
		},
		{
			name: "mat183_with_payload",
			args: args{callback: &tb.Callback{Data: "\flinks_mat183|ignored"}},
			wantContains: []string{
				"The following links are important for MAT 183:",
				`<a href="https://www.math.uzh.ch/mat183.1">Website</a>`,
				`>Slack Forum</a>`,
			},
		},
		{
			name: "phy127_routed_by_unique",
			args: args{callback: &tb.Callback{Unique: "links_phy127"}},
			wantContains: []string{
				"The following links are important for PHY 127:",
				`<a href="https://www.physik.uzh.ch/de/lehre/PHY127/FS2021.html">Website</a>`,
			},
		},
		{
			name: "discord_respond_error",
			args: args{callback: &tb.Callback{Data: "\flinks_discord"}, respondErr: assert.AnError},
			wantContains: []string{
				"The following Discord servers are used by students:",
				`<a href="https://discord.gg/kNhWwUGt8a">Biomed Erstis</a>`,
				`<a href="https://discord.gg/Dt454GHdDE">BIUZ Biomedizin Server</a>`,
				`<a href="https://discord.gg/XJU44tdZr3">UZH Students</a>`,
			},
		},
		{
			name:        "unknown_data_ignored",
			args:        args{callback: &tb.Callback{Data: "\fsomething_else"}},
			wantNothing: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			var text string
			ctx := mocks.NewMockTelebotContext(ctrl)
			ctx.EXPECT().Callback().Return(tt.args.callback)
			ctx.EXPECT().Respond().Return(tt.args.respondErr)
			if !tt.wantNothing {
				ctx.EXPECT().Send(gomock.Any(), tb.ModeHTML, tb.NoPreview).
					DoAndReturn(func(what any, _ ...any) error {
						var ok bool
						text, ok = what.(string)
						require.True(t, ok)
						return nil
					})
			}

			h := telegram.NewHandler(mocks.NewMockSubscriptions(ctrl), slog.New(slog.DiscardHandler))
			require.NoError(t, h.Callback(ctx))

			for _, want := range tt.wantContains {
				assert.Contains(t, text, want)
			}
		})
	}

	t.Run("nil_callback", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		defer ctrl.Finish()

		ctx := mocks.NewMockTelebotContext(ctrl)
		ctx.EXPECT().Callback().Return(nil)

		h := telegram.NewHandler(mocks.NewMockSubscriptions(ctrl), slog.New(slog.DiscardHandler))
		require.NoError(t, h.Callback(ctx))
	})
}
