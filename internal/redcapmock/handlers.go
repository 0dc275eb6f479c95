package redcapmock

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"
)

// InvalidTokenMessage is the error REDCap sends for a token it rejects.
const InvalidTokenMessage = "You do not have permissions to use the API: the token you provided is invalid"

func (s *Server) serveAPI(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not a valid form")
		return
	}
	// Only the body counts; REDCap ignores the query string.
	form := r.PostForm
	content := form.Get("content")

	s.mu.Lock()
	s.requests[""]++
	if content != "" {
		s.requests[content]++
	}
	s.lastForm[content] = maps.Clone(map[string][]string(form))
	failure, failing := s.nextFailure(content)
	s.mu.Unlock()

	if failing {
		s.fail(w, r, failure)
		return
	}

	if form.Get("token") != s.fixture.Token {
		writeError(w, http.StatusUnauthorized, InvalidTokenMessage)
		return
	}

	switch content {
	case "version":
		s.mu.Lock()
		v := s.fixture.Version
		s.mu.Unlock()
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, v)
	case "project":
		writeJSON(w, s.fixture.Project)
	case "project_settings":
		writeJSON(w, s.fixture.ProjectSettings)
	case "instrument":
		writeJSON(w, s.fixture.Instruments)
	case "metadata":
		s.exportMetadata(w, form)
	case "exportFieldNames":
		s.exportFieldNames(w, form)
	case "record":
		if form.Get("action") == "import" {
			s.importRecords(w, form)
			return
		}
		s.exportRecords(w, form)
	case "surveyLink":
		s.exportSurveyLink(w, form)
	case "pdf":
		s.exportPDF(w, form)
	case "user":
		writeJSON(w, s.fixture.Users)
	case "fileRepository":
		s.listRepository(w, form)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("The value of the parameter \"content\" (%q) is not valid", content))
	}
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, f Failure) {
	if f.Delay > 0 {
		select {
		case <-time.After(f.Delay):
		case <-r.Context().Done():
			return
		}
	}
	if f.Drop {
		// Closes the connection without a response.
		panic(http.ErrAbortHandler)
	}

	status := f.Status
	if status == 0 {
		status = http.StatusOK
	}
	if f.APIError != "" {
		writeError(w, status, f.APIError)
		return
	}
	w.WriteHeader(status)
	fmt.Fprint(w, f.Body)
}

func (s *Server) exportMetadata(w http.ResponseWriter, form url.Values) {
	fields := indexed(form, "fields")
	forms := indexed(form, "forms")

	out := make([]map[string]string, 0, len(s.fixture.Metadata))
	for _, m := range s.fixture.Metadata {
		if len(fields) > 0 && !slices.Contains(fields, m["field_name"]) {
			continue
		}
		if len(forms) > 0 && !slices.Contains(forms, m["form_name"]) {
			continue
		}
		out = append(out, m)
	}
	writeJSON(w, out)
}

func (s *Server) exportFieldNames(w http.ResponseWriter, form url.Values) {
	only := form.Get("field")

	out := []map[string]string{}
	for _, m := range s.fixture.Metadata {
		name := m["field_name"]
		if only != "" && name != only {
			continue
		}
		if m["field_type"] != "checkbox" {
			out = append(out, map[string]string{
				"original_field_name": name,
				"choice_value":        "",
				"export_field_name":   name,
			})
			continue
		}
		for _, choice := range checkboxChoices(m["select_choices_or_calculations"]) {
			out = append(out, map[string]string{
				"original_field_name": name,
				"choice_value":        choice,
				"export_field_name":   name + "___" + strings.ToLower(choice),
			})
		}
	}
	if only != "" && len(out) == 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("The field %q does not exist", only))
		return
	}
	writeJSON(w, out)
}

// checkboxChoices returns the codes of "1, Yes | 2, No".
func checkboxChoices(choices string) []string {
	var codes []string
	for _, c := range strings.Split(choices, "|") {
		code, _, _ := strings.Cut(c, ",")
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

var filterEquals = regexp.MustCompile(`^\[([a-z][a-z0-9_]*)\]\s*=\s*"((?:[^"\\]|\\.)*)"$`)

// matchFilter compiles the filterLogic subset the mock understands: a single
// [field] = "value" comparison.
func matchFilter(logic string) (func(map[string]string) bool, error) {
	if logic == "" {
		return func(map[string]string) bool { return true }, nil
	}
	m := filterEquals.FindStringSubmatch(strings.TrimSpace(logic))
	if m == nil {
		return nil, fmt.Errorf("unsupported filterLogic %q", logic)
	}
	field := m[1]
	var value strings.Builder
	escaped := false
	for _, r := range m[2] {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		value.WriteRune(r)
	}
	want := value.String()
	return func(rec map[string]string) bool { return rec[field] == want }, nil
}

func (s *Server) exportRecords(w http.ResponseWriter, form url.Values) {
	match, err := matchFilter(form.Get("filterLogic"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ids := indexed(form, "records")
	fields := indexed(form, "fields")
	idField := s.fixture.RecordIDField

	s.mu.Lock()
	var selected []map[string]string
	for _, rec := range s.records {
		if len(ids) > 0 && !slices.Contains(ids, rec[idField]) {
			continue
		}
		if !match(rec) {
			continue
		}
		selected = append(selected, projectRecord(rec, idField, fields))
	}
	s.mu.Unlock()

	if form.Get("type") == "eav" {
		writeRecords(w, form.Get("format"), eavRows(selected, idField))
		return
	}
	writeRecords(w, form.Get("format"), selected)
}

// projectRecord keeps the record ID and the requested fields.
func projectRecord(rec map[string]string, idField string, fields []string) map[string]string {
	if len(fields) == 0 {
		return maps.Clone(rec)
	}
	out := map[string]string{idField: rec[idField]}
	for _, f := range fields {
		out[f] = rec[f]
	}
	return out
}

// eavRows flattens records into one row per non-blank value.
func eavRows(records []map[string]string, idField string) []map[string]string {
	var rows []map[string]string
	for _, rec := range records {
		for _, f := range sortedKeys(rec) {
			if rec[f] == "" {
				continue
			}
			rows = append(rows, map[string]string{
				"record":     rec[idField],
				"field_name": f,
				"value":      rec[f],
			})
		}
	}
	return rows
}

func writeRecords(w http.ResponseWriter, format string, rows []map[string]string) {
	switch format {
	case "", "json":
		if rows == nil {
			rows = []map[string]string{}
		}
		writeJSON(w, rows)
	case "csv":
		var header []string
		seen := map[string]bool{}
		for _, row := range rows {
			for _, k := range sortedKeys(row) {
				if !seen[k] {
					seen[k] = true
					header = append(header, k)
				}
			}
		}
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		cw := csv.NewWriter(w)
		_ = cw.Write(header)
		for _, row := range rows {
			line := make([]string, len(header))
			for i, k := range header {
				line[i] = row[k]
			}
			_ = cw.Write(line)
		}
		cw.Flush()
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("format %q is not supported by the mock", format))
	}
}

func (s *Server) importRecords(w http.ResponseWriter, form url.Values) {
	if f := form.Get("format"); f != "" && f != "json" {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("format %q is not supported by the mock", f))
		return
	}
	var incoming []map[string]any
	if err := json.Unmarshal([]byte(form.Get("data")), &incoming); err != nil {
		writeError(w, http.StatusBadRequest, "The data being imported is not formatted correctly")
		return
	}
	if form.Get("type") == "eav" {
		incoming = fromEAV(incoming, s.fixture.RecordIDField)
	}

	idField := s.fixture.RecordIDField
	overwrite := form.Get("overwriteBehavior") == "overwrite"
	autoNumber := form.Get("forceAutoNumber") == "true"

	records := make([]map[string]string, 0, len(incoming))
	for _, in := range incoming {
		rec := make(map[string]string, len(in))
		for k, v := range in {
			rec[k] = stringValue(v)
		}
		if rec[idField] == "" && !autoNumber {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("The record ID field (%s) is missing", idField))
			return
		}
		records = append(records, rec)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var ids, autoIDs []string
	for _, rec := range records {
		if autoNumber {
			oldID := rec[idField]
			rec[idField] = s.nextRecordID()
			autoIDs = append(autoIDs, rec[idField]+","+oldID)
		}
		s.upsert(rec, idField, overwrite)
		ids = append(ids, rec[idField])
	}

	switch form.Get("returnContent") {
	case "ids":
		writeJSON(w, ids)
	case "auto_ids":
		writeJSON(w, autoIDs)
	case "nothing":
		w.WriteHeader(http.StatusOK)
	default:
		writeJSON(w, map[string]int{"count": len(ids)})
	}
}

// upsert stores rec. Blank values only erase existing ones when overwrite is
// set. Callers hold s.mu.
func (s *Server) upsert(rec map[string]string, idField string, overwrite bool) {
	for _, existing := range s.records {
		if existing[idField] != rec[idField] {
			continue
		}
		for k, v := range rec {
			if v == "" && !overwrite {
				continue
			}
			existing[k] = v
		}
		return
	}
	s.records = append(s.records, rec)
}

// nextRecordID returns one more than the largest numeric record ID. Callers
// hold s.mu.
func (s *Server) nextRecordID() string {
	highest := 0
	for _, rec := range s.records {
		if n, err := strconv.Atoi(rec[s.fixture.RecordIDField]); err == nil && n > highest {
			highest = n
		}
	}
	return strconv.Itoa(highest + 1)
}

func fromEAV(rows []map[string]any, idField string) []map[string]any {
	byID := map[string]map[string]any{}
	var order []string
	for _, row := range rows {
		id := stringValue(row["record"])
		rec, ok := byID[id]
		if !ok {
			rec = map[string]any{idField: id}
			byID[id] = rec
			order = append(order, id)
		}
		rec[stringValue(row["field_name"])] = row["value"]
	}
	out := make([]map[string]any, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

func (s *Server) exportSurveyLink(w http.ResponseWriter, form url.Values) {
	record := form.Get("record")
	instrument := form.Get("instrument")
	if !s.hasRecord(record) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("The record %q does not exist", record))
		return
	}
	if !s.hasInstrument(instrument) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("The instrument %q does not exist", instrument))
		return
	}

	code := fmt.Sprintf("%s-%s", record, instrument)
	if inst := form.Get("repeat_instance"); inst != "" {
		code += "-" + inst
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "https://redcap.mock/surveys/?s=%s", url.QueryEscape(strings.ToUpper(code)))
}

func (s *Server) exportPDF(w http.ResponseWriter, form url.Values) {
	record := form.Get("record")
	if record != "" && !s.hasRecord(record) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("The record %q does not exist", record))
		return
	}
	instrument := form.Get("instrument")
	if instrument != "" && !s.hasInstrument(instrument) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("The instrument %q does not exist", instrument))
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "record_"+record+".pdf"))
	fmt.Fprintf(w, "%%PDF-1.4\n%% record %s instrument %s compact %s\n%%%%EOF\n",
		record, instrument, form.Get("compactDisplay"))
}

func (s *Server) listRepository(w http.ResponseWriter, form url.Values) {
	if form.Get("action") != "list" {
		writeError(w, http.StatusBadRequest, "The action parameter must be list")
		return
	}
	if form.Get("folder_id") != "" {
		writeJSON(w, []map[string]any{})
		return
	}
	writeJSON(w, s.fixture.Repository)
}

func (s *Server) hasRecord(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.records {
		if rec[s.fixture.RecordIDField] == id {
			return true
		}
	}
	return false
}

func (s *Server) hasInstrument(name string) bool {
	for _, inst := range s.fixture.Instruments {
		if inst["instrument_name"] == name {
			return true
		}
	}
	return false
}

// indexed collects name[0], name[1], ... in index order, plus a plain
// comma-separated name.
func indexed(form url.Values, name string) []string {
	type entry struct {
		i int
		v string
	}
	var entries []entry
	for k, vs := range form {
		rest, ok := strings.CutPrefix(k, name+"[")
		if !ok || !strings.HasSuffix(rest, "]") || len(vs) == 0 {
			continue
		}
		i, err := strconv.Atoi(strings.TrimSuffix(rest, "]"))
		if err != nil {
			continue
		}
		entries = append(entries, entry{i, vs[0]})
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].i < entries[b].i })

	var out []string
	for _, e := range entries {
		out = append(out, e.v)
	}
	if plain := form.Get(name); plain != "" {
		for _, v := range strings.Split(plain, ",") {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}

func stringValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		if v {
			return "1"
		}
		return "0"
	default:
		return fmt.Sprint(v)
	}
}

func sortedKeys(m map[string]string) []string {
	return slices.Sorted(maps.Keys(m))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
