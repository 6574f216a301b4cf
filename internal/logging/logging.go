package logging

import (
	"io"
	"log"
	"os"

	jww "github.com/spf13/jwalterweatherman"
)

// Init enables JWW logging at the given threshold. A logPath of "-" keeps
// output on stdout, an empty logPath disables logging entirely and any other
// value appends to that file.
func Init(threshold jww.Threshold, logPath string) error {
	if logPath == "" {
		jww.SetStdoutOutput(io.Discard)
		jww.SetLogOutput(io.Discard)
		return nil
	}

	if logPath != "-" {
		jww.SetStdoutOutput(io.Discard)
		logOutput, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		jww.SetLogOutput(logOutput)
	}

	if threshold < jww.LevelTrace {
		threshold = jww.LevelTrace
	}
	if threshold > jww.LevelFatal {
		threshold = jww.LevelFatal
	}

	jww.SetStdoutThreshold(threshold)
	jww.SetLogThreshold(threshold)
	if threshold <= jww.LevelDebug {
		jww.SetFlags(log.LstdFlags | log.Lmicroseconds)
	}
	jww.INFO.Printf("log level set to: %s", threshold)
	return nil
}
