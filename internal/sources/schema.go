package sources

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Record is one source item before normalisation
type Record struct {
	Title        string
	Content      string
	Date         string
	Court        string
	CaseNumber   string
	Kind         string
	URL          string
	Jurisdiction string
}

func (r Record) empty() bool {
	return strings.TrimSpace(r.Title) == "" && strings.TrimSpace(r.Content) == ""
}

// Schema decodes one response-shape family into records.
// A body without the expected result list yields no records and no error;
// items that fail to decode are counted in skipped and left out.
type Schema interface {
	Name() string
	Decode(body []byte) (records []Record, skipped int, err error)
}

// Schema family names used in the source registry
const (
	SchemaPJe        = "pje"
	SchemaESAJ       = "esaj"
	SchemaProjudi    = "projudi"
	SchemaDJEN       = "djen"
	SchemaAggregator = "aggregator"
	SchemaGeneric    = "generic"
)

var schemas = map[string]Schema{
	SchemaPJe:        listSchema[pjeItem]{name: SchemaPJe, path: []string{"content"}, mapItem: pjeItem.record},
	SchemaESAJ:       listSchema[esajItem]{name: SchemaESAJ, path: []string{"publicacoes"}, mapItem: esajItem.record},
	SchemaProjudi:    listSchema[projudiItem]{name: SchemaProjudi, path: []string{"data"}, mapItem: projudiItem.record},
	SchemaDJEN:       listSchema[djenItem]{name: SchemaDJEN, path: []string{"items"}, mapItem: djenItem.record},
	SchemaAggregator: listSchema[aggregatorItem]{name: SchemaAggregator, path: []string{"results"}, mapItem: aggregatorItem.record},
	SchemaGeneric:    genericSchema{},
}

// SchemaFor returns the schema registered under name; empty means generic
func SchemaFor(name string) (Schema, bool) {
	if name == "" {
		name = SchemaGeneric
	}
	s, ok := schemas[strings.ToLower(name)]
	return s, ok
}

// listSchema decodes a result list found at path into typed items
type listSchema[T any] struct {
	name    string
	path    []string
	mapItem func(T) Record
}

func (s listSchema[T]) Name() string { return s.name }

// Decode falls back to the generic shape when the family's list is absent
func (s listSchema[T]) Decode(body []byte) ([]Record, int, error) {
	items, err := locateList(body, s.path)
	if err != nil {
		return nil, 0, err
	}
	if items == nil {
		return genericSchema{}.Decode(body)
	}
	records, skipped := decodeItems(items, s.mapItem)
	return records, skipped, nil
}

// locateList walks path through nested objects and returns the array found there.
// A missing key is not an error.
func locateList(body []byte, path []string) ([]json.RawMessage, error) {
	raw := json.RawMessage(bytes.TrimSpace(body))
	for _, key := range path {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		next, ok := obj[key]
		if !ok {
			return nil, nil
		}
		raw = next
	}

	if isNull(raw) {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("result list: %w", err)
	}
	return items, nil
}

func decodeItems[T any](items []json.RawMessage, mapItem func(T) Record) ([]Record, int) {
	records := make([]Record, 0, len(items))
	skipped := 0

	for _, raw := range items {
		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			skipped++
			continue
		}
		rec := mapItem(item)
		if rec.empty() {
			skipped++
			continue
		}
		records = append(records, rec)
	}

	return records, skipped
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

// flexString accepts JSON strings, numbers and booleans. Objects and
// arrays are rejected so the enclosing item counts as malformed.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	case '{', '[':
		return fmt.Errorf("expected scalar, got %c", b[0])
	}

	*f = flexString(b)
	return nil
}

func (f flexString) String() string { return strings.TrimSpace(string(f)) }

// first returns the first non-blank value
func first(values ...flexString) string {
	for _, v := range values {
		if s := v.String(); s != "" {
			return s
		}
	}
	return ""
}

// pjeItem is a PJe diary entry (paged "content" list)
type pjeItem struct {
	Title      flexString `json:"titulo"`
	Text       flexString `json:"texto"`
	Date       flexString `json:"dataDisponibilizacao"`
	Organ      flexString `json:"orgaoJulgador"`
	CaseNumber flexString `json:"numeroProcesso"`
	DocType    flexString `json:"tipoDocumento"`
	Link       flexString `json:"link"`
}

func (i pjeItem) record() Record {
	return Record{
		Title:      first(i.Title, i.DocType),
		Content:    i.Text.String(),
		Date:       i.Date.String(),
		Court:      i.Organ.String(),
		CaseNumber: i.CaseNumber.String(),
		Kind:       i.DocType.String(),
		URL:        i.Link.String(),
	}
}

// esajItem is an e-SAJ publication
type esajItem struct {
	Title    flexString `json:"titulo"`
	Content  flexString `json:"conteudo"`
	Date     flexString `json:"dataPublicacao"`
	Section  flexString `json:"caderno"`
	Venue    flexString `json:"vara"`
	Process  flexString `json:"processo"`
	Kind     flexString `json:"tipo"`
	Location flexString `json:"url"`
}

func (i esajItem) record() Record {
	return Record{
		Title:      first(i.Title, i.Kind, i.Section),
		Content:    i.Content.String(),
		Date:       i.Date.String(),
		Court:      first(i.Venue, i.Section),
		CaseNumber: i.Process.String(),
		Kind:       i.Kind.String(),
		URL:        i.Location.String(),
	}
}

// projudiItem is a Projudi intimation
type projudiItem struct {
	Title       flexString `json:"titulo"`
	Description flexString `json:"descricao"`
	Date        flexString `json:"data"`
	District    flexString `json:"comarca"`
	Number      flexString `json:"numero"`
	Kind        flexString `json:"tipo"`
	Link        flexString `json:"link"`
}

func (i projudiItem) record() Record {
	return Record{
		Title:      first(i.Title, i.Kind),
		Content:    i.Description.String(),
		Date:       i.Date.String(),
		Court:      i.District.String(),
		CaseNumber: i.Number.String(),
		Kind:       i.Kind.String(),
		URL:        i.Link.String(),
	}
}

// djenItem is a national electronic justice diary communication
type djenItem struct {
	Court      flexString `json:"siglaTribunal"`
	Date       flexString `json:"data_disponibilizacao"`
	Organ      flexString `json:"nomeOrgao"`
	Kind       flexString `json:"tipoComunicacao"`
	Class      flexString `json:"nomeClasse"`
	Text       flexString `json:"texto"`
	CaseNumber flexString `json:"numeroprocessocommascara"`
	RawNumber  flexString `json:"numero_processo"`
	Link       flexString `json:"link"`
}

func (i djenItem) record() Record {
	return Record{
		Title:        first(i.Class, i.Kind),
		Content:      i.Text.String(),
		Date:         i.Date.String(),
		Court:        first(i.Organ, i.Court),
		CaseNumber:   first(i.CaseNumber, i.RawNumber),
		Kind:         i.Kind.String(),
		URL:          i.Link.String(),
		Jurisdiction: stateFromCourt(i.Court.String()),
	}
}

// aggregatorItem is a result from the general legal-content aggregator
type aggregatorItem struct {
	Title      flexString `json:"title"`
	Snippet    flexString `json:"snippet"`
	Content    flexString `json:"content"`
	Date       flexString `json:"date"`
	Court      flexString `json:"court"`
	State      flexString `json:"state"`
	CaseNumber flexString `json:"case_number"`
	Kind       flexString `json:"type"`
	URL        flexString `json:"url"`
}

func (i aggregatorItem) record() Record {
	return Record{
		Title:        i.Title.String(),
		Content:      first(i.Content, i.Snippet),
		Date:         i.Date.String(),
		Court:        i.Court.String(),
		CaseNumber:   i.CaseNumber.String(),
		Kind:         i.Kind.String(),
		URL:          i.URL.String(),
		Jurisdiction: i.State.String(),
	}
}

// stateFromCourt maps a state court acronym (TJSP) to its state code (SP)
func stateFromCourt(court string) string {
	c := strings.ToUpper(strings.TrimSpace(court))
	if len(c) == 4 && strings.HasPrefix(c, "TJ") {
		return c[2:]
	}
	return ""
}

// genericListKeys are the conventional top-level keys probed for unknown shapes
var genericListKeys = []string{"items", "results", "data", "publicacoes", "content", "hits"}

var genericFields = struct {
	title, content, date, court, caseNumber, kind, url, jurisdiction []string
}{
	title:        []string{"title", "titulo", "nome"},
	content:      []string{"content", "texto", "text", "body", "conteudo", "descricao", "snippet"},
	date:         []string{"date", "data", "dataPublicacao", "dataDisponibilizacao", "data_disponibilizacao", "published_at", "publishedAt"},
	court:        []string{"court", "orgaoJulgador", "orgao", "nomeOrgao", "vara", "comarca"},
	caseNumber:   []string{"caseNumber", "case_number", "numeroProcesso", "processo", "numero"},
	kind:         []string{"type", "tipo", "kind", "tipoComunicacao"},
	url:          []string{"url", "link"},
	jurisdiction: []string{"jurisdiction", "uf", "state", "estado"},
}

// genericSchema is the single fallback for sources without a known shape
type genericSchema struct{}

func (genericSchema) Name() string { return SchemaGeneric }

func (genericSchema) Decode(body []byte) ([]Record, int, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		// some sources answer with a bare array
		var items []json.RawMessage
		if arrErr := json.Unmarshal(body, &items); arrErr != nil {
			return nil, 0, fmt.Errorf("decode response: %w", err)
		}
		records, skipped := decodeItems(items, genericItem.record)
		return records, skipped, nil
	}

	for _, key := range genericListKeys {
		raw, ok := top[key]
		if !ok || isNull(raw) {
			continue
		}

		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			// search-engine style {"hits": {"hits": [...]}}
			nested, nestedErr := locateList(raw, []string{"hits"})
			if nestedErr != nil || nested == nil {
				continue
			}
			items = nested
		}

		records, skipped := decodeItems(items, genericItem.record)
		return records, skipped, nil
	}

	return nil, 0, nil
}

type genericItem map[string]json.RawMessage

func (i genericItem) pick(keys []string) string {
	src := map[string]json.RawMessage(i)
	if inner, ok := i["_source"]; ok {
		var nested map[string]json.RawMessage
		if json.Unmarshal(inner, &nested) == nil {
			src = nested
		}
	}

	for _, k := range keys {
		raw, ok := src[k]
		if !ok {
			continue
		}
		var v flexString
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		if s := v.String(); s != "" {
			return s
		}
	}
	return ""
}

func (i genericItem) record() Record {
	return Record{
		Title:        i.pick(genericFields.title),
		Content:      i.pick(genericFields.content),
		Date:         i.pick(genericFields.date),
		Court:        i.pick(genericFields.court),
		CaseNumber:   i.pick(genericFields.caseNumber),
		Kind:         i.pick(genericFields.kind),
		URL:          i.pick(genericFields.url),
		Jurisdiction: i.pick(genericFields.jurisdiction),
	}
}
