package email

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strings"
)

type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

type Message struct {
	From        string
	FromName    string
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

// Build renders msg as a multipart/mixed MIME message.
func Build(msg Message) ([]byte, error) {
	if !strings.Contains(msg.To, "@") {
		return nil, fmt.Errorf("invalid email address: %s", msg.To)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	from := (&mail.Address{Name: msg.FromName, Address: msg.From}).String()
	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", w.Boundary())

	text, err := w.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"8bit"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create body part: %w", err)
	}
	if _, err := text.Write([]byte(msg.Body)); err != nil {
		return nil, fmt.Errorf("failed to write body: %w", err)
	}

	for _, a := range msg.Attachments {
		ct := a.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		part, err := w.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {mime.FormatMediaType(ct, map[string]string{"name": a.Name})},
			"Content-Transfer-Encoding": {"base64"},
			"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": a.Name})},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create attachment part %s: %w", a.Name, err)
		}
		if err := writeBase64(part, a.Data); err != nil {
			return nil, fmt.Errorf("failed to encode attachment %s: %w", a.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}
	return buf.Bytes(), nil
}

// writeBase64 writes data base64-encoded in 76 character lines.
func writeBase64(w interface{ Write([]byte) (int, error) }, data []byte) error {
	enc := base64.StdEncoding.EncodeToString(data)
	for len(enc) > 76 {
		if _, err := w.Write([]byte(enc[:76] + "\r\n")); err != nil {
			return err
		}
		enc = enc[76:]
	}
	_, err := w.Write([]byte(enc + "\r\n"))
	return err
}

func Send(server string, port int, username, password string, msg Message) error {
	data, err := Build(msg)
	if err != nil {
		return err
	}
	auth := smtp.PlainAuth("", username, password, server)
	addr := fmt.Sprintf("%s:%d", server, port)
	return smtp.SendMail(addr, auth, msg.From, []string{msg.To}, data)
}
