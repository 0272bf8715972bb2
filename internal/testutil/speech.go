package testutil

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/qibridge/transport/loopback"
	"github.com/hupe1980/qibridge/value"
)

// SpeechService is the name the speech fixture registers under.
const SpeechService = "ALTextToSpeech"

// Speech records what it was asked to say.
type Speech struct {
	mu     sync.Mutex
	spoken []string
}

// NewSpeech registers a speech service offering say(s), getLanguage() -> s
// and getSummary() -> s.
func NewSpeech(broker *loopback.Broker) (*Speech, error) {
	s := &Speech{}
	_, err := NewObjectBuilder(SpeechService).
		Method("say", "(s)", "v", s.say).
		Method("getLanguage", "()", "s", func(_ context.Context, c *loopback.Call) (*value.Value, error) {
			return c.Arena.String("English"), nil
		}).
		Method("getSummary", "()", "s", s.summary).
		Register(broker)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Spoken returns the sentences said so far.
func (s *Speech) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func (s *Speech) say(_ context.Context, c *loopback.Call) (*value.Value, error) {
	text, err := c.Args[0].ToString()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.spoken = append(s.spoken, text)
	s.mu.Unlock()
	return nil, nil
}

func (s *Speech) summary(_ context.Context, c *loopback.Call) (*value.Value, error) {
	s.mu.Lock()
	n := len(s.spoken)
	s.mu.Unlock()
	lines := []string{
		SpeechService + " (loopback)",
		"language: English",
		"sentences spoken: " + strconv.Itoa(n),
	}
	return c.Arena.String(strings.Join(lines, "\n")), nil
}
