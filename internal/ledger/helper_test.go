package ledger

import "os"

func writeRaw(path, doc string) error {
	return os.WriteFile(path, []byte(doc), 0o600)
}
