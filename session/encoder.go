package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const sessionFormatVersionCurrent = 1

// Fixed-offset numeric header so the renewal Lua script can read ttl and
// patch updatedAt/expiresAt in place without decoding the string tail:
//
//	version(1) ttl(8) createdAt(8) updatedAt(8) expiresAt(8)
//
// followed by length-prefixed role, subjectType, subjectID, clientToken.

func Encode(s *Session) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(sessionFormatVersionCurrent)

	for _, v := range []int64{s.TTL, s.CreatedAt, s.UpdatedAt, s.ExpiresAt} {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}

	for _, field := range []struct {
		name  string
		value string
	}{
		{"role", s.Role},
		{"subjectType", s.SubjectType},
		{"subjectID", s.SubjectID},
		{"clientToken", s.ClientToken},
	} {
		if len(field.value) > 255 {
			return nil, errors.New(field.name + " too long")
		}
		buf.WriteByte(byte(len(field.value)))
		buf.WriteString(field.value)
	}

	return buf.Bytes(), nil
}

func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != sessionFormatVersionCurrent {
		return nil, errors.New("invalid session version")
	}

	s := &Session{}

	for _, dst := range []*int64{&s.TTL, &s.CreatedAt, &s.UpdatedAt, &s.ExpiresAt} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, err
		}
	}

	for _, dst := range []*string{&s.Role, &s.SubjectType, &s.SubjectID, &s.ClientToken} {
		length, err := reader.ReadByte()
		if err != nil {
			return nil, err
		}
		value := make([]byte, length)
		if _, err := io.ReadFull(reader, value); err != nil {
			return nil, err
		}
		*dst = string(value)
	}

	return s, nil
}
