package middleware

import (
	tele "gopkg.in/telebot.v4"
)

// metricsContext wraps tele.Context so every successful outgoing message
// bumps a per-update counter. The router's summary line reads the counters
// back through GetCounters.
type metricsContext struct{ tele.Context }

// after records one outgoing message when the underlying call succeeded.
func (m metricsContext) after(err error, opts []interface{}) error {
	if err != nil {
		return err
	}
	count, _ := GetCounters(m.Context)
	m.Set("messages", count+1)
	if withKeyboard(opts) {
		m.Set("kb", true)
	}
	return nil
}

func withKeyboard(opts []interface{}) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

func (m metricsContext) Send(what interface{}, opts ...interface{}) error {
	return m.after(m.Context.Send(what, opts...), opts)
}

func (m metricsContext) Reply(what interface{}, opts ...interface{}) error {
	return m.after(m.Context.Reply(what, opts...), opts)
}

func (m metricsContext) Edit(what interface{}, opts ...interface{}) error {
	return m.after(m.Context.Edit(what, opts...), opts)
}

func (m metricsContext) EditOrSend(what interface{}, opts ...interface{}) error {
	return m.after(m.Context.EditOrSend(what, opts...), opts)
}

// MessageMetrics instruments the context to track response counters.
func MessageMetrics(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set("messages", 0)
		c.Set("kb", false)
		return next(metricsContext{Context: c})
	}
}

// GetCounters reads message count and keyboard presence from the context.
func GetCounters(c tele.Context) (int, bool) {
	msgs, _ := c.Get("messages").(int)
	kb, _ := c.Get("kb").(bool)
	return msgs, kb
}
