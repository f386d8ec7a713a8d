package pipeline

import (
	"os"

	"github.com/rotisserie/eris"

	"loadhunt/internal"
)

// DryRun is the result of parsing a message from files without storing it.
type DryRun struct {
	Dialect internal.Dialect `json:"dialect"`
	Reason  string           `json:"reason"`
	Fields  int              `json:"fields"`
	Parsed  ParsedShipment   `json:"parsed"`
}

// ParseFromFiles runs detection and the dialect parser over a saved message.
// An empty forced dialect means detect it the way the batch would.
func (d *Detector) ParseFromFiles(from, subject, htmlPath, textPath string, forced internal.Dialect) (DryRun, error) {
	msg := internal.InboundMessage{FromAddress: from, Subject: subject}
	var err error
	if msg.HTMLBody, err = readOptional(htmlPath); err != nil {
		return DryRun{}, err
	}
	if msg.TextBody, err = readOptional(textPath); err != nil {
		return DryRun{}, err
	}

	detection := Detection{Dialect: forced, Reason: "forced"}
	if forced == "" {
		detection = d.Detect(msg)
	}
	parsed := Parse(detection.Dialect, msg.Subject, msg.HTMLBody, msg.TextBody)
	return DryRun{Dialect: detection.Dialect, Reason: detection.Reason, Fields: parsed.FieldCount(), Parsed: parsed}, nil
}

func readOptional(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrapf(err, "read %s", path)
	}
	return string(blob), nil
}
