// redact маскирует секреты перед записью в логи.
package redact

import "net/url"

func Password() string { return "[REDACTED_PASSWORD]" }

// URL прячет пароль из userinfo (redis://:secret@host → redis://:[REDACTED_PASSWORD]@host)
// и значения query-параметров с секретами. Неразборчивая строка заменяется на "***".
func URL(s string) string {
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "***"
	}

	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), Password())
		}
	}

	if u.RawQuery != "" {
		q := u.Query()
		for _, k := range []string{"password", "token", "key", "secret"} {
			if q.Has(k) {
				q.Set(k, Password())
			}
		}
		u.RawQuery = q.Encode()
	}

	s = u.String()
	if unescaped, err := url.PathUnescape(s); err == nil {
		return unescaped
	}

	return s
}
