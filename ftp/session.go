package ftp

import (
	"bufio"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	log "github.com/fclairamb/go-log"
)

// maxCommandLength bounds a single control-channel line.
const maxCommandLength = 4096

// errCommandTooLong ends a session whose client exceeds maxCommandLength.
var errCommandTooLong = errors.New("command line too long")

// session is one control connection. Commands are handled synchronously in
// arrival order, so a reply is always for the last command sent.
type session struct {
	server *Server
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
	logger log.Logger

	sessionID string
	remoteIP  string

	loggedIn   bool
	user       string
	renameFrom string
	driver     ClientDriver

	transferType string

	// Data connection negotiation state. Exactly one of pasvList or
	// activeIP is armed at a time; both reset after a transfer.
	pasvList   net.Listener
	activeIP   string
	activePort int
}

// commandHandlers dispatches authenticated-state commands. USER, PASS, QUIT
// and NOOP are handled inline in handleCommand.
var commandHandlers = map[string]func(*session, string){
	"CWD":  (*session).handleCWD,
	"XCWD": (*session).handleCWD,
	"CDUP": (*session).handleCDUP,
	"PWD":  (*session).handlePWD,
	"XPWD": (*session).handlePWD,
	"LIST": (*session).handleLIST,
	"NLST": (*session).handleNLST,
	"MKD":  (*session).handleMKD,
	"XMKD": (*session).handleMKD,
	"RMD":  (*session).handleRMD,
	"XRMD": (*session).handleRMD,
	"DELE": (*session).handleDELE,
	"RNFR": (*session).handleRNFR,
	"RNTO": (*session).handleRNTO,

	"RETR": (*session).handleRETR,
	"STOR": (*session).handleSTOR,

	"TYPE": (*session).handleTYPE,
	"PORT": (*session).handlePORT,
	"PASV": (*session).handlePASV,
	"EPSV": (*session).handleEPSV,

	"SIZE": (*session).handleSIZE,
	"SYST": (*session).handleSYST,
	"FEAT": (*session).handleFEAT,
	"OPTS": (*session).handleOPTS,
}

func generateSessionID() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%08x", b)
}

func newSession(server *Server, conn net.Conn) *session {
	remoteIP, _, err := net.SplitHostPort(conn.RemoteAddr().String())
	if err != nil {
		remoteIP = conn.RemoteAddr().String()
	}

	sessionID := generateSessionID()

	return &session{
		server:       server,
		conn:         conn,
		reader:       bufio.NewReader(conn),
		writer:       bufio.NewWriter(conn),
		logger:       server.logger.With("sessionId", sessionID, "remoteIp", remoteIP),
		sessionID:    sessionID,
		remoteIP:     remoteIP,
		transferType: "I",
	}
}

// serve runs the session loop until the client disconnects or errors out.
func (s *session) serve() {
	defer s.close()

	s.reply(220, s.server.greeting)
	s.logger.Info("session started")

	for {
		if s.server.idleTimeout > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.server.idleTimeout))
		}

		line, err := s.readCommand()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("read error", "err", err)
			}
			if errors.Is(err, errCommandTooLong) {
				s.reply(500, "Command line too long.")
			}
			return
		}

		if quit := s.handleCommand(line); quit {
			return
		}
	}
}

// readCommand reads one CRLF-terminated line with a length limit.
func (s *session) readCommand() (string, error) {
	var line []byte
	for {
		b, err := s.reader.ReadByte()
		if err != nil {
			return string(line), err
		}

		if len(line) >= maxCommandLength {
			return "", errCommandTooLong
		}

		if b == '\n' {
			return string(line), nil
		}
		line = append(line, b)
	}
}

func (s *session) close() {
	if s.pasvList != nil {
		_ = s.pasvList.Close()
	}
	_ = s.conn.Close()
	s.logger.Debug("session closed", "user", s.user)
}

// handleCommand parses and dispatches one command line. It returns true when
// the session should end.
func (s *session) handleCommand(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return false
	}

	parts := strings.SplitN(line, " ", 2)
	cmd := strings.ToUpper(parts[0])
	arg := ""
	if len(parts) > 1 {
		arg = parts[1]
	}

	logArg := arg
	if cmd == "PASS" {
		logArg = "***"
	}
	s.logger.Debug("command received", "cmd", cmd, "arg", logArg, "user", s.user)

	switch cmd {
	case "USER":
		s.handleUSER(arg)
	case "PASS":
		s.handlePASS(arg)
	case "QUIT":
		s.reply(221, "Service closing control connection.")
		return true
	case "NOOP":
		s.reply(200, "OK.")
	default:
		if handler, ok := commandHandlers[cmd]; ok {
			handler(s, arg)
		} else {
			s.reply(502, "Command not implemented.")
		}
	}
	return false
}

func (s *session) handleUSER(user string) {
	s.user = user
	s.reply(331, "User name okay, need password.")
}

// handlePASS runs the credential check. A failed attempt leaves the session
// open so the client can retry.
func (s *session) handlePASS(pass string) {
	if s.user == "" {
		s.reply(503, "Login with USER first.")
		return
	}

	driver, err := s.server.driver.Authenticate(s.user, pass)
	if err != nil {
		s.logger.Warn("authentication failed", "user", s.user)
		s.reply(530, "Login incorrect.")
		return
	}

	s.driver = driver
	s.loggedIn = true
	s.logger.Info("authentication success", "user", s.user)
	s.reply(230, "User logged in, proceed.")
}

// requireAuth replies 530 and returns false when the session has not
// authenticated yet.
func (s *session) requireAuth() bool {
	if !s.loggedIn {
		s.reply(530, "Please login with USER and PASS.")
		return false
	}
	return true
}

// reply sends one response line to the client.
func (s *session) reply(code int, message string) {
	fmt.Fprintf(s.writer, "%d %s\r\n", code, message)
	_ = s.writer.Flush()
}

// replyError maps filesystem errors onto FTP reply codes.
func (s *session) replyError(err error) {
	switch {
	case os.IsNotExist(err):
		s.reply(550, "File not found.")
	case os.IsPermission(err):
		s.reply(550, "Permission denied.")
	case os.IsExist(err):
		s.reply(550, "File already exists.")
	default:
		s.reply(550, "Action failed: "+err.Error())
	}
}
