// Package kml converts KML 2.2 documents into GeoJSON feature collections.
//
// Only polygon geometry is mapped. Placemarks holding points, lines or
// nothing at all are skipped without error.
package kml

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/net/html/charset"
)

const (
	Namespace   = "http://www.opengis.net/kml/2.2"
	DefaultName = "Unnamed"
)

var ErrParse = errors.New("malformed KML document")

type node struct {
	name     xml.Name
	text     strings.Builder
	children []*node
}

func (n *node) is(local string) bool {
	return n.name.Space == Namespace && n.name.Local == local
}

// findAll returns every descendant with the given local name, in document order.
func (n *node) findAll(local string) []*node {
	var out []*node
	var walk func(*node)
	walk = func(cur *node) {
		for _, c := range cur.children {
			if c.is(local) {
				out = append(out, c)
			}
			walk(c)
		}
	}
	walk(n)
	return out
}

func (n *node) find(local string) *node {
	for _, c := range n.children {
		if c.is(local) {
			return c
		}
		if found := c.find(local); found != nil {
			return found
		}
	}
	return nil
}

var utf8BOM = []byte("\ufeff")

func parse(data []byte) (*node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrParse)
	}

	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = charset.NewReaderLabel

	root := &node{}
	stack := []*node{root}
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParse, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if len(stack) == 1 && len(root.children) > 0 {
				return nil, fmt.Errorf("%w: element %s after document element", ErrParse, t.Name.Local)
			}
			n := &node{name: t.Name}
			parent := stack[len(stack)-1]
			parent.children = append(parent.children, n)
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 1 {
				if len(bytes.TrimSpace(bytes.TrimPrefix(t, utf8BOM))) > 0 {
					return nil, fmt.Errorf("%w: text outside document element", ErrParse)
				}
				continue
			}
			stack[len(stack)-1].text.Write(t)
		}
	}

	if len(root.children) == 0 {
		return nil, fmt.Errorf("%w: no root element", ErrParse)
	}
	return root, nil
}

// Extract parses a KML document and returns one Polygon feature per placemark
// that carries polygon coordinates. The result is deterministic and Extract
// has no side effects.
func Extract(data []byte) (*geojson.FeatureCollection, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, pm := range root.findAll("Placemark") {
		coords := polygonCoordinates(pm)
		if coords == nil {
			continue
		}
		ring := ParseRing(coords.text.String())
		if len(ring) == 0 {
			continue
		}

		f := geojson.NewFeature(orb.Polygon{ring})
		f.Properties["name"] = placemarkName(pm)
		fc.Append(f)
	}
	return fc, nil
}

// polygonCoordinates returns the first coordinates element found under any
// Polygon of the placemark.
func polygonCoordinates(pm *node) *node {
	for _, poly := range pm.findAll("Polygon") {
		if c := poly.find("coordinates"); c != nil {
			return c
		}
	}
	return nil
}

func placemarkName(pm *node) string {
	if n := pm.find("name"); n != nil {
		return n.text.String()
	}
	return DefaultName
}

// ParseRing reads a whitespace separated list of lon,lat[,alt] tuples.
// Altitude is dropped. Tuples that do not hold two finite numbers are skipped.
func ParseRing(text string) orb.Ring {
	var ring orb.Ring
	for _, tuple := range strings.Fields(text) {
		parts := strings.Split(tuple, ",")
		if len(parts) < 2 {
			continue
		}
		lon, ok := parseCoord(parts[0])
		if !ok {
			continue
		}
		lat, ok := parseCoord(parts[1])
		if !ok {
			continue
		}
		ring = append(ring, orb.Point{lon, lat})
	}
	return ring
}

func parseCoord(s string) (float64, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
