package ftp

import (
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"time"
)

// dataConnTimeout bounds how long a negotiated data connection may take to
// establish.
const dataConnTimeout = 10 * time.Second

func (s *session) handleRETR(path string) {
	if !s.requireAuth() {
		return
	}

	info, err := s.driver.Stat(path)
	if err != nil {
		s.replyError(err)
		return
	}

	// Some upload clients probe directories with RETR instead of LIST.
	// Serve them the listing over the data channel instead of failing.
	if info.IsDir() {
		s.retrDirectory(path)
		return
	}

	file, err := s.driver.Open(path)
	if err != nil {
		s.replyError(err)
		return
	}
	defer file.Close()

	conn, err := s.connData()
	if err != nil {
		s.replyDataError(err)
		return
	}
	defer conn.Close()

	s.reply(150, "Opening data connection for RETR.")

	start := time.Now()
	bytes, err := io.Copy(conn, file)
	if err != nil {
		s.reply(426, "Connection closed; transfer aborted.")
		return
	}

	s.logger.Info("transfer complete",
		"user", s.user, "operation", "RETR", "path", path,
		"bytes", bytes, "durationMs", time.Since(start).Milliseconds())

	s.reply(226, "Transfer complete.")
}

// retrDirectory streams a directory listing in response to RETR.
func (s *session) retrDirectory(path string) {
	entries, err := s.driver.List(path)
	if err != nil {
		s.replyError(err)
		return
	}

	conn, err := s.connData()
	if err != nil {
		s.replyDataError(err)
		return
	}
	defer conn.Close()

	s.reply(150, "Opening data connection for directory listing.")

	for _, entry := range entries {
		fmt.Fprint(conn, formatListEntry(entry))
	}

	s.reply(226, "Directory send OK.")
}

func (s *session) handleSTOR(path string) {
	if !s.requireAuth() {
		return
	}

	// The data connection comes first: creating the file truncates any
	// previous content, so a transfer that can't even start must not touch
	// the target.
	conn, err := s.connData()
	if err != nil {
		s.replyDataError(err)
		return
	}
	defer conn.Close()

	file, err := s.driver.Create(path)
	if err != nil {
		s.replyError(err)
		return
	}

	s.reply(150, "Opening data connection for STOR.")

	start := time.Now()
	bytes, err := io.Copy(file, conn)
	if err != nil {
		abortUpload(file)
		s.reply(426, "Connection closed; transfer aborted.")
		return
	}

	// Closing fires the upload hook, which hands the file to ingestion.
	if err := file.Close(); err != nil {
		s.replyError(err)
		return
	}

	s.logger.Info("transfer complete",
		"user", s.user, "operation", "STOR", "path", path,
		"bytes", bytes, "durationMs", time.Since(start).Milliseconds())

	s.reply(226, "Transfer complete.")
}

// abortUpload closes an upload whose transfer failed. Writers that act on a
// completed upload when closed, such as firing an ingestion hook, expose
// Abort so the partial content is not treated as done.
func abortUpload(file io.WriteCloser) {
	if a, ok := file.(interface{ Abort() error }); ok {
		_ = a.Abort()
		return
	}
	_ = file.Close()
}

func (s *session) handleTYPE(arg string) {
	if !s.requireAuth() {
		return
	}
	switch strings.ToUpper(arg) {
	case "A", "A N":
		s.transferType = "A"
		s.reply(200, "Type set to A.")
	case "I", "L 8":
		s.transferType = "I"
		s.reply(200, "Type set to I.")
	default:
		s.reply(504, "Type not supported.")
	}
}

func (s *session) handleSYST(_ string) {
	s.reply(215, "UNIX Type: L8")
}

func (s *session) handleFEAT(_ string) {
	_, _ = s.writer.WriteString("211-Features:\r\n")
	for _, f := range []string{"SIZE", "PASV", "EPSV", "UTF8"} {
		_, _ = s.writer.WriteString(" " + f + "\r\n")
	}
	s.reply(211, "End")
}

func (s *session) handleOPTS(arg string) {
	// Clients switch to UTF-8 right after FEAT advertises it.
	if strings.EqualFold(arg, "UTF8 ON") {
		s.reply(200, "UTF8 mode enabled")
		return
	}
	s.reply(501, "Option not understood.")
}

func (s *session) handleSIZE(path string) {
	if !s.requireAuth() {
		return
	}

	info, err := s.driver.Stat(path)
	if err != nil || info.IsDir() {
		s.reply(550, "Could not get file size.")
		return
	}

	s.reply(213, strconv.FormatInt(info.Size(), 10))
}

func (s *session) handlePORT(arg string) {
	if !s.requireAuth() {
		return
	}

	// Format: h1,h2,h3,h4,p1,p2
	parts := strings.Split(arg, ",")
	if len(parts) != 6 {
		s.reply(501, "Syntax error in parameters or arguments.")
		return
	}

	p1, err1 := strconv.Atoi(parts[4])
	p2, err2 := strconv.Atoi(parts[5])
	if err1 != nil || err2 != nil || p1 < 0 || p1 > 255 || p2 < 0 || p2 > 255 {
		s.reply(501, "Invalid port number.")
		return
	}

	ip := net.ParseIP(strings.Join(parts[0:4], "."))
	if ip == nil {
		s.reply(501, "Invalid IP address.")
		return
	}

	if !s.validateActiveIP(ip) {
		s.reply(500, "Illegal PORT command.")
		return
	}

	s.closePassive()
	s.activeIP = ip.String()
	s.activePort = p1*256 + p2

	s.reply(200, "PORT command successful.")
}

// validateActiveIP only allows data connections back to the control
// connection's source, preventing bounce attacks.
func (s *session) validateActiveIP(ip net.IP) bool {
	remoteIP := net.ParseIP(s.remoteIP)
	if remoteIP == nil {
		return false
	}
	return ip.Equal(remoteIP)
}

func (s *session) handlePASV(_ string) {
	if !s.requireAuth() {
		return
	}

	s.closePassive()

	ln, err := s.listenPassive()
	if err != nil {
		s.replyDataError(err)
		return
	}
	s.pasvList = ln
	s.activeIP = ""

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)

	host := s.server.passiveIP
	if host == "" {
		host, _, _ = net.SplitHostPort(s.conn.LocalAddr().String())
	}

	ipParts := []string{"0", "0", "0", "0"}
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil {
		ipParts = strings.Split(ip.To4().String(), ".")
	}

	arg := fmt.Sprintf("%s,%s,%s,%s,%d,%d",
		ipParts[0], ipParts[1], ipParts[2], ipParts[3], port/256, port%256)
	s.reply(227, "Entering Passive Mode ("+arg+").")
}

func (s *session) handleEPSV(_ string) {
	if !s.requireAuth() {
		return
	}

	s.closePassive()

	ln, err := s.listenPassive()
	if err != nil {
		s.replyDataError(err)
		return
	}
	s.pasvList = ln
	s.activeIP = ""

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	s.reply(229, fmt.Sprintf("Entering Extended Passive Mode (|||%s|)", portStr))
}

// listenPassive binds a data listener inside the configured port range,
// walking the whole range from a round-robin starting offset before giving
// up with ErrNoPassivePort.
func (s *session) listenPassive() (net.Listener, error) {
	minPort := s.server.pasvMinPort
	maxPort := s.server.pasvMaxPort
	if minPort <= 0 || maxPort < minPort {
		return net.Listen("tcp", ":0")
	}

	rangeLen := int32(maxPort - minPort + 1)
	startOffset := s.server.nextPassivePort.Add(1)

	for i := int32(0); i < rangeLen; i++ {
		offset := (startOffset + i) % rangeLen
		port := int(int32(minPort) + offset)

		ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
		if err == nil {
			return ln, nil
		}
	}
	return nil, fmt.Errorf("%w: range [%d, %d] exhausted", ErrNoPassivePort, minPort, maxPort)
}

func (s *session) closePassive() {
	if s.pasvList != nil {
		_ = s.pasvList.Close()
		s.pasvList = nil
	}
}

// connData establishes the data connection negotiated by the last PASV,
// EPSV or PORT command.
func (s *session) connData() (net.Conn, error) {
	if s.pasvList != nil {
		return s.connPassive()
	}
	if s.activeIP != "" {
		return s.connActive()
	}
	return nil, fmt.Errorf("no data connection setup")
}

func (s *session) connPassive() (net.Conn, error) {
	if t, ok := s.pasvList.(*net.TCPListener); ok {
		_ = t.SetDeadline(time.Now().Add(dataConnTimeout))
	}

	conn, err := s.pasvList.Accept()
	s.closePassive()
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (s *session) connActive() (net.Conn, error) {
	addr := net.JoinHostPort(s.activeIP, strconv.Itoa(s.activePort))
	s.activeIP = ""

	conn, err := net.DialTimeout("tcp", addr, dataConnTimeout)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// replyDataError reports a failed data channel setup. The control session
// stays usable afterwards.
func (s *session) replyDataError(err error) {
	s.logger.Warn("data connection failed", "user", s.user, "err", err)
	s.server.driver.ClientError(s.sessionID, err)
	s.reply(425, "Can't open data connection.")
}
