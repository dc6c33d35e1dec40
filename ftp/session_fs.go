package ftp

import (
	"fmt"
	"os"
)

func (s *session) handlePWD(_ string) {
	if !s.requireAuth() {
		return
	}
	s.reply(257, fmt.Sprintf("%q is the current directory.", s.driver.Pwd()))
}

func (s *session) handleCWD(path string) {
	if !s.requireAuth() {
		return
	}
	if err := s.driver.ChangeDir(path); err != nil {
		s.replyError(err)
		return
	}
	s.reply(250, "Directory successfully changed.")
}

func (s *session) handleCDUP(_ string) {
	s.handleCWD("..")
}

func (s *session) handleLIST(arg string) {
	if !s.requireAuth() {
		return
	}

	// LIST without arguments lists the current directory. Some clients send
	// flags such as "-a"; those are ignored rather than treated as a path.
	path := stripListFlags(arg)

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

	s.reply(150, "Here comes the directory listing.")

	for _, entry := range entries {
		fmt.Fprint(conn, formatListEntry(entry))
	}

	s.reply(226, "Directory send OK.")
}

func (s *session) handleNLST(arg string) {
	if !s.requireAuth() {
		return
	}

	entries, err := s.driver.List(stripListFlags(arg))
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

	s.reply(150, "Here comes the file list.")

	for _, entry := range entries {
		fmt.Fprintf(conn, "%s\r\n", entry.Name())
	}

	s.reply(226, "Transfer complete.")
}

func (s *session) handleMKD(path string) {
	if !s.requireAuth() {
		return
	}
	if err := s.driver.MakeDir(path); err != nil {
		s.replyError(err)
		return
	}
	s.logger.Info("directory created", "user", s.user, "path", path)
	s.reply(257, fmt.Sprintf("%q created.", path))
}

func (s *session) handleRMD(path string) {
	if !s.requireAuth() {
		return
	}
	if err := s.driver.RemoveDir(path); err != nil {
		s.replyError(err)
		return
	}
	s.logger.Info("directory removed", "user", s.user, "path", path)
	s.reply(250, "Directory removed.")
}

func (s *session) handleDELE(path string) {
	if !s.requireAuth() {
		return
	}
	if err := s.driver.DeleteFile(path); err != nil {
		s.replyError(err)
		return
	}
	s.logger.Info("file deleted", "user", s.user, "path", path)
	s.reply(250, "File deleted.")
}

func (s *session) handleRNFR(path string) {
	if !s.requireAuth() {
		return
	}

	if _, err := s.driver.Stat(path); err != nil {
		s.reply(550, "File not found.")
		return
	}

	s.renameFrom = path
	s.reply(350, "Requested file action pending further information.")
}

func (s *session) handleRNTO(path string) {
	if !s.requireAuth() {
		return
	}

	if s.renameFrom == "" {
		s.reply(503, "Bad sequence of commands. Send RNFR first.")
		return
	}

	err := s.driver.Rename(s.renameFrom, path)
	s.renameFrom = ""
	if err != nil {
		s.replyError(err)
		return
	}

	s.reply(250, "Requested file action successful, file renamed.")
}

// formatListEntry renders one Unix-style listing line, the simplified format
// most clients parse.
func formatListEntry(entry os.FileInfo) string {
	return fmt.Sprintf("%s 1 owner group %12d %s %s\r\n",
		entry.Mode().String(),
		entry.Size(),
		entry.ModTime().Format("Jan 02 15:04"),
		entry.Name())
}

// stripListFlags drops leading "-x" style options some clients send with
// LIST and NLST.
func stripListFlags(arg string) string {
	for len(arg) > 0 && arg[0] == '-' {
		i := 0
		for i < len(arg) && arg[i] != ' ' {
			i++
		}
		for i < len(arg) && arg[i] == ' ' {
			i++
		}
		arg = arg[i:]
	}
	return arg
}
