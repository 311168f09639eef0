package main

import "log/syslog"

// syslogWriter adapts log/syslog.Writer to the io.Writer zerolog expects,
// routing every record through syslog at the daemon facility — the same
// destination the teacher's setupLogging dispatches to when LogToSyslog
// is set.
type syslogWriter struct {
	w *syslog.Writer
}

func (s *syslogWriter) Write(p []byte) (int, error) {
	if err := s.w.Info(string(p)); err != nil {
		return 0, err
	}
	return len(p), nil
}

func dialSyslog() (*syslogWriter, error) {
	w, err := syslog.New(syslog.LOG_DAEMON|syslog.LOG_INFO, "rsincrond")
	if err != nil {
		return nil, err
	}
	return &syslogWriter{w: w}, nil
}
