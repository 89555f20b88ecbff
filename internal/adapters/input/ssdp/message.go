package ssdp

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/textproto"
	"strings"
)

const (
	stAll        = "ssdp:all"
	stRootDevice = "upnp:rootdevice"
	stBasic      = "urn:schemas-upnp-org:device:basic:1"

	serverHeader = "Linux/3.14.0 UPnP/1.0 IpBridge/1.24.0"
	maxAge       = 100
)

var errNotSearch = errors.New("not an M-SEARCH request")

// parseSearch returns the search target of an M-SEARCH datagram.
func parseSearch(data []byte) (string, error) {
	r := textproto.NewReader(bufio.NewReader(bytes.NewReader(data)))
	line, err := r.ReadLine()
	if err != nil {
		return "", err
	}
	method, _, _ := strings.Cut(line, " ")
	if !strings.EqualFold(method, "M-SEARCH") {
		return "", errNotSearch
	}
	header, err := r.ReadMIMEHeader()
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	if man := header.Get("Man"); man != "" && !strings.Contains(man, "ssdp:discover") {
		return "", fmt.Errorf("unexpected MAN %q", man)
	}
	st := strings.TrimSpace(header.Get("St"))
	if st == "" {
		return "", errors.New("missing ST")
	}
	return st, nil
}

// target is one notification type the bridge answers for.
type target struct {
	st  string
	usn string
}

// targets lists what the bridge advertises, in announcement order.
func (r *Responder) targets() []target {
	uuid := "uuid:" + r.cfg.UUID
	return []target{
		{st: stRootDevice, usn: uuid + "::" + stRootDevice},
		{st: uuid, usn: uuid},
		{st: stBasic, usn: uuid + "::" + stBasic},
	}
}

// match returns the targets a search for st should be answered with.
func (r *Responder) match(st string) []target {
	all := r.targets()
	if strings.EqualFold(st, stAll) {
		return all
	}
	for _, t := range all {
		if strings.EqualFold(st, t.st) {
			return []target{t}
		}
	}
	return nil
}

func (r *Responder) response(t target) []byte {
	return []byte(fmt.Sprintf("HTTP/1.1 200 OK\r\n"+
		"HOST: %s\r\n"+
		"CACHE-CONTROL: max-age=%d\r\n"+
		"EXT:\r\n"+
		"LOCATION: %s\r\n"+
		"SERVER: %s\r\n"+
		"hue-bridgeid: %s\r\n"+
		"ST: %s\r\n"+
		"USN: %s\r\n\r\n",
		r.groupAddr(), maxAge, r.cfg.Location, serverHeader, r.cfg.BridgeID, t.st, t.usn))
}

func (r *Responder) notify(t target, nts string) []byte {
	return []byte(fmt.Sprintf("NOTIFY * HTTP/1.1\r\n"+
		"HOST: %s\r\n"+
		"CACHE-CONTROL: max-age=%d\r\n"+
		"LOCATION: %s\r\n"+
		"SERVER: %s\r\n"+
		"NTS: %s\r\n"+
		"hue-bridgeid: %s\r\n"+
		"NT: %s\r\n"+
		"USN: %s\r\n\r\n",
		r.groupAddr(), maxAge, r.cfg.Location, serverHeader, nts, r.cfg.BridgeID, t.st, t.usn))
}
