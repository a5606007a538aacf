/*
Package server implements msgpack IPC for mass searches.

The server reads a stream of msgpack maps from stdin and writes one msgpack
map per request to stdout. Requests without an action are searches; "get_info"
describes the loaded index.

Search request:

	{"id": "q1", "m": [1045.53, 1179.60], "t": 0.02, "mm": 1, "tags": ["PEP"]}

Response, one slot per query mass in request order:

	{"id": "q1", "slots": [{"m": 1045.53, "h": [{"p": "LVNELTEFAK", "r": "sp|P02769", "o": 66, "d": 0}]}], "c": 1, "t": 812}

Tags are upper-cased before the search. A "lookup" request lists catalog
records whose accession starts with "p":

	{"id": "r1", "action": "lookup", "p": "sp|P027", "l": 5}
	{"id": "r1", "r": [{"id": "sp|P02769", "d": "Albumin", "s": 1, "l": 607}], "c": 1}

Omitted tolerance and modification limits fall back to the [search] section
of the config. Errors come back as {"id", "e", "c"} with an HTTP-like code:
400 for a malformed query, 422 when the step budget ran out, 500 otherwise.
*/
package server

import "github.com/bastiangx/massfind/pkg/catalog"

// SearchRequest - mass search request
type SearchRequest struct {
	ID        string    `msgpack:"id"`
	Action    string    `msgpack:"action,omitempty"`
	Masses    []float64 `msgpack:"m"`
	Tolerance *float64  `msgpack:"t,omitempty"`
	MaxMods   *int      `msgpack:"mm,omitempty"`
	Tags      []string  `msgpack:"tags,omitempty"`
	Limit     int       `msgpack:"l,omitempty"`
	Prefix    string    `msgpack:"p,omitempty"`
}

// SearchHit - one peptide in a slot
type SearchHit struct {
	Peptide string  `msgpack:"p"`
	Record  string  `msgpack:"r"`
	Offset  int     `msgpack:"o"`
	Delta   float64 `msgpack:"d"`
}

// SearchSlot - hits for one query mass
type SearchSlot struct {
	Mass float64     `msgpack:"m"`
	Hits []SearchHit `msgpack:"h"`
	More bool        `msgpack:"more,omitempty"`
}

// SearchResponse - search response
type SearchResponse struct {
	ID        string       `msgpack:"id"`
	Slots     []SearchSlot `msgpack:"slots"`
	Count     int          `msgpack:"c"`
	TimeTaken int64        `msgpack:"t"`
}

// LookupResponse - catalog records matching an accession prefix
type LookupResponse struct {
	ID      string           `msgpack:"id"`
	Records []catalog.Record `msgpack:"r"`
	Count   int              `msgpack:"c"`
}

// InfoResponse - index description
type InfoResponse struct {
	ID            string  `msgpack:"id"`
	Status        string  `msgpack:"status"`
	Entries       int     `msgpack:"entries"`
	Records       int     `msgpack:"records"`
	CorpusBytes   int     `msgpack:"corpus_bytes"`
	Modifications int     `msgpack:"modifications"`
	Tolerance     float64 `msgpack:"tolerance"`
	MaxMods       int     `msgpack:"max_mods"`
}

// SearchError holds basic error information for failed requests
type SearchError struct {
	ID    string `msgpack:"id"`
	Error string `msgpack:"e"`
	Code  int    `msgpack:"c"`
}
