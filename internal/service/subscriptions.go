package service

import (
	"fmt"
	"log/slog"

	"github.com/Roma7-7-7/livestream-notifier/internal/dal"
)

//go:generate mockgen -package mocks -destination mocks/subscriptions.go . SubscriptionsStore

type SubscriptionsStore interface {
	Exists(chatID dal.ChatID) (bool, error)
	Add(chatID dal.ChatID) (bool, error)
	Remove(chatID dal.ChatID) (bool, error)
}

type Subscriptions struct {
	store SubscriptionsStore

	log *slog.Logger
}

func NewSubscription(store SubscriptionsStore, log *slog.Logger) *Subscriptions {
	return &Subscriptions{
		store: store,
		log:   log.With("component", "service").With("service", "subscriptions"),
	}
}

func (s *Subscriptions) IsSubscribed(chatID int64) (bool, error) {
	exists, err := s.store.Exists(dal.ChatID(chatID))
	if err != nil {
		return false, fmt.Errorf("check if subscription exists: %w", err)
	}
	return exists, nil
}

// Subscribe reports false when the chat was already subscribed.
func (s *Subscriptions) Subscribe(chatID int64) (bool, error) {
	added, err := s.store.Add(dal.ChatID(chatID))
	if err != nil {
		return false, fmt.Errorf("add subscription: %w", err)
	}
	if added {
		s.log.Debug("new subscriber", "chatID", chatID)
	}
	return added, nil
}

// Unsubscribe reports false when the chat was not subscribed.
func (s *Subscriptions) Unsubscribe(chatID int64) (bool, error) {
	removed, err := s.store.Remove(dal.ChatID(chatID))
	if err != nil {
		return false, fmt.Errorf("remove subscription: %w", err)
	}
	if removed {
		s.log.Debug("unsubscribed", "chatID", chatID)
	}
	return removed, nil
}
