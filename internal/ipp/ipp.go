// Package ipp encodes and submits IPP Print-Job requests. Only the small
// subset of the protocol needed to hand a finished artifact to a print
// server is implemented.
package ipp

import (
	"bytes"
	"encoding/binary"
	"regexp"
)

const (
	// protocol version 1.1
	versionMajor byte = 0x01
	versionMinor byte = 0x01

	// operation codes
	OpPrintJob uint16 = 0x0002

	// delimiter tags
	tagOperationAttributes byte = 0x01
	tagEndOfAttributes     byte = 0x03

	// value tags
	tagCharset         byte = 0x47
	tagNaturalLanguage byte = 0x48
	tagURI             byte = 0x45
	tagNameWithoutLang byte = 0x42
)

var destinationAllowed = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// SanitizeDestination restricts a destination name to a safe character set
// before it is embedded in any URI.
func SanitizeDestination(name string) string {
	return destinationAllowed.ReplaceAllString(name, "")
}

// Request describes a Print-Job submission.
type Request struct {
	RequestID  uint32
	PrinterURI string
	User       string
	JobName    string
	Document   []byte
}

// Encode renders the request into the IPP wire format: a fixed 9-byte
// header (version, operation code, request id, operation-attributes tag),
// the operation attribute group, the end-of-attributes tag and the raw
// document bytes appended verbatim.
func (r Request) Encode() []byte {
	var buf bytes.Buffer

	buf.WriteByte(versionMajor)
	buf.WriteByte(versionMinor)
	_ = binary.Write(&buf, binary.BigEndian, OpPrintJob)
	_ = binary.Write(&buf, binary.BigEndian, r.RequestID)
	buf.WriteByte(tagOperationAttributes)

	writeAttribute(&buf, tagCharset, "attributes-charset", "utf-8")
	writeAttribute(&buf, tagNaturalLanguage, "attributes-natural-language", "en")
	writeAttribute(&buf, tagURI, "printer-uri", r.PrinterURI)
	writeAttribute(&buf, tagNameWithoutLang, "requesting-user-name", r.User)
	writeAttribute(&buf, tagNameWithoutLang, "job-name", r.JobName)

	buf.WriteByte(tagEndOfAttributes)
	buf.Write(r.Document)

	return buf.Bytes()
}

// writeAttribute emits one attribute-with-one-value: the value tag, the
// 2-byte big-endian length-prefixed name and the length-prefixed UTF-8
// value.
func writeAttribute(buf *bytes.Buffer, tag byte, name, value string) {
	buf.WriteByte(tag)
	_ = binary.Write(buf, binary.BigEndian, uint16(len(name)))
	buf.WriteString(name)
	_ = binary.Write(buf, binary.BigEndian, uint16(len(value)))
	buf.WriteString(value)
}
