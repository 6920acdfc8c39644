package gateway

import (
	"context"
	"sync"
)

// Recorder — шлюз-заглушка для тестов.
//
// Запоминает отправленные уведомления и позволяет подставлять
// ошибку для конкретных получателей.
type Recorder struct {
	mu     sync.Mutex
	sent   []Push
	failBy map[string]error
}

// NewRecorder создаёт пустой Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		failBy: make(map[string]error),
	}
}

// FailToken заставляет Send возвращать err для указанного получателя.
func (r *Recorder) FailToken(token string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failBy[token] = err
}

// Send запоминает уведомление либо возвращает подставленную ошибку.
func (r *Recorder) Send(_ context.Context, push Push) error {
	if push.Token == "" {
		return ErrNoRecipient
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err, ok := r.failBy[push.Token]; ok {
		return err
	}

	r.sent = append(r.sent, push)
	return nil
}

// Sent возвращает копию всех доставленных уведомлений.
func (r *Recorder) Sent() []Push {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Push, len(r.sent))
	copy(out, r.sent)
	return out
}

// SentTo возвращает уведомления, доставленные получателю.
func (r *Recorder) SentTo(token string) []Push {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Push
	for _, p := range r.sent {
		if p.Token == token {
			out = append(out, p)
		}
	}
	return out
}
