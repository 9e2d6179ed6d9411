package middleware

import (
	"net/http"
)

// Middleware — net/http мидлвар в форме, которую принимает chi.Router.Use.
type Middleware func(http.Handler) http.Handler

// responseMeter запоминает статус и число записанных байт ответа.
type responseMeter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func newResponseMeter(w http.ResponseWriter) *responseMeter {
	return &responseMeter{ResponseWriter: w}
}

func (m *responseMeter) WriteHeader(code int) {
	if m.status == 0 {
		m.status = code
	}
	m.ResponseWriter.WriteHeader(code)
}

func (m *responseMeter) Write(p []byte) (int, error) {
	if m.status == 0 {
		m.status = http.StatusOK
	}
	n, err := m.ResponseWriter.Write(p)
	m.bytes += n
	return n, err
}

// Status — итоговый код ответа; обработчик без записи даёт 200.
func (m *responseMeter) Status() int {
	if m.status == 0 {
		return http.StatusOK
	}
	return m.status
}
