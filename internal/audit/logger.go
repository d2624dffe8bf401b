package audit

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Logger writes structured audit records for signup and login events.
type Logger struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Logger {
	return &Logger{
		log: log.With().Bool("audit", true).Logger(),
	}
}

// Record logs one audit event. Failed attempts are logged at warn level and
// any email field is masked.
func (l *Logger) Record(action string, fields map[string]string) {
	evt := l.log.Info()
	if strings.HasSuffix(action, ".failed") {
		evt = l.log.Warn()
	}
	evt = evt.Str("action", action)

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := fields[k]
		if k == "email" {
			v = maskEmail(v)
		}
		evt = evt.Str(k, v)
	}
	evt.Msg("audit")
}

// maskEmail keeps the first two characters of the local part and the domain.
func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if len(email) < 5 || at < 0 {
		return "***"
	}
	if at < 2 {
		return email[:1] + "***" + email[at:]
	}
	return email[:2] + "***" + email[at:]
}
