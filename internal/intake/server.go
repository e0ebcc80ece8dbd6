package intake

import (
	"bytes"
	"io"
	"time"

	"camwatch/internal/logger"

	"github.com/emersion/go-smtp"
)

const maxMessageBytes = 10 << 20

// NewServer returns an unauthenticated SMTP server delivering into backend.
func NewServer(addr string, backend *Backend) *smtp.Server {
	s := smtp.NewServer(&smtpBackend{backend: backend})
	s.Addr = addr
	s.Domain = "camwatch"
	s.ReadTimeout = time.Minute
	s.WriteTimeout = time.Minute
	s.MaxMessageBytes = maxMessageBytes
	s.MaxRecipients = 50
	s.AllowInsecureAuth = true
	return s
}

type smtpBackend struct {
	backend *Backend
}

func (be *smtpBackend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	return &session{backend: be.backend, logger: be.backend.logger, remote: c.Conn().RemoteAddr().String()}, nil
}

// session follows the envelope: MAIL, RCPT, then DATA delivers the message.
type session struct {
	backend *Backend
	logger  *logger.Logger
	remote  string
	from    string
	to      []string
}

func (s *session) Mail(from string, opts *smtp.MailOptions) error {
	s.from = from
	return nil
}

func (s *session) Rcpt(to string, opts *smtp.RcptOptions) error {
	s.to = append(s.to, to)
	return nil
}

// Data never rejects a message because of its content.
func (s *session) Data(r io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		s.logger.Error("Failed to read message from %s: %v", s.remote, err)
		return err
	}

	if _, err := s.backend.HandleMessage(buf.Bytes()); err != nil {
		s.logger.Error("Ignoring message from %s <%s>: %v", s.remote, s.from, err)
	}
	return nil
}

func (s *session) Reset() {
	s.from = ""
	s.to = nil
}

func (s *session) Logout() error {
	return nil
}
