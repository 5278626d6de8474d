package sessionstate

import (
	"io"
	"os"

	"github.com/sentrykit/sentrykit/docenc"
)

// readFileOrNil reads path in full, returning (nil, nil) if it does not
// exist, per the "missing file is not an error on first launch" rule.
func readFileOrNil(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// writeFileAtomicish opens path for truncating write, streams through an
// Encoder built with scratch, and closes on every exit path.
//
// Unlike the crash report file (which is O_EXCL and must never clobber a
// partial prior report), the state file is expected to be overwritten on
// every save, so a straightforward O_TRUNC write is used here.
func writeFileAtomicish(path string, scratch []byte, build func(e *docenc.Encoder)) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	e := docenc.NewEncoder(func(p []byte) docenc.SinkStatus {
		if _, err := f.Write(p); err != nil {
			return docenc.SinkCannotAddData
		}
		return docenc.SinkOK
	}, scratch)
	build(e)
	if err := e.Flush(); err != nil {
		return err
	}
	return e.Err()
}
