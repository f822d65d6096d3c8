package jobspec

import (
	"errors"
	"maps"
	"regexp"
	"slices"
	"strings"
)

type StepSpec struct {
	Name      string          `json:"name" yaml:"name"`
	Request   RequestSpec     `json:"request" yaml:"request"`
	Extract   []ExtractorSpec `json:"extract" yaml:"extract"`
	Validate  []ValidatorSpec `json:"validate" yaml:"validate"`
	ThinkTime string          `json:"think_time,omitempty" yaml:"think_time,omitempty"`
}

type RequestSpec struct {
	Method string            `json:"method" yaml:"method"`
	URL    string            `json:"url" yaml:"url"`
	Body   string            `json:"body" yaml:"body"`
	Header map[string]string `json:"header,omitempty" yaml:"header,omitempty"`
}

// Extractor types.
const (
	ExtractCookie = "cookie"
	ExtractHeader = "header"
	ExtractJSON   = "json"
	ExtractRegex  = "regex"
	ExtractHTML   = "html"
)

type ExtractorSpec struct {
	VariableName string  `json:"variable_name" yaml:"variable_name"`
	Selector     string  `json:"selector" yaml:"selector"`
	Attribute    *string `json:"attribute,omitempty" yaml:"attribute,omitempty"`
	Type         string  `json:"type" yaml:"type"`
}

type ValidatorSpec struct {
	Name     string `json:"name" yaml:"name"`
	Expected int    `json:"expected" yaml:"expected"`
	Type     string `json:"type" yaml:"type"`
}

var (
	methods          = []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}
	bodylessMethods  = []string{"GET", "HEAD", "OPTIONS"}
	headerNameRx     = regexp.MustCompile("^[a-zA-Z0-9'`#$%&*+.^_|~!-]+$")
	headerSelectorRx = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]*$`)
	jsonPathRx       = regexp.MustCompile(`^\$(\.[a-zA-Z0-9_]+|\[[0-9]+\])*$`)
)

type Step struct {
	name      string
	request   RequestSpec
	extract   []ExtractorSpec
	validate  []ValidatorSpec
	thinkTime string
	errs      []error
}

func newStep(name string) *Step {
	s := &Step{name: name, request: RequestSpec{Method: "GET"}}
	if strings.TrimSpace(name) == "" {
		s.errs = append(s.errs, invalidf("step name cannot be empty"))
	}
	return s
}

func (s *Step) fail(err error) *Step {
	s.errs = append(s.errs, err)
	return s
}

// Request sets the http request of the step. GET, HEAD and OPTIONS requests
// cannot carry a body.
func (s *Step) Request(method, rawURL, body string) *Step {
	method = strings.ToUpper(method)
	if !slices.Contains(methods, method) {
		return s.fail(invalidf("invalid http method %q", method))
	}
	if err := checkURL(rawURL); err != nil {
		return s.fail(err)
	}
	if body != "" && slices.Contains(bodylessMethods, method) {
		return s.fail(invalidf("%s method should not have a body", method))
	}
	s.request.Method = method
	s.request.URL = rawURL
	s.request.Body = body
	return s
}

func (s *Step) Get(rawURL string) *Step     { return s.Request("GET", rawURL, "") }
func (s *Step) Delete(rawURL string) *Step  { return s.Request("DELETE", rawURL, "") }
func (s *Step) Head(rawURL string) *Step    { return s.Request("HEAD", rawURL, "") }
func (s *Step) Options(rawURL string) *Step { return s.Request("OPTIONS", rawURL, "") }

func (s *Step) Post(rawURL, body string) *Step  { return s.Request("POST", rawURL, body) }
func (s *Step) Put(rawURL, body string) *Step   { return s.Request("PUT", rawURL, body) }
func (s *Step) Patch(rawURL, body string) *Step { return s.Request("PATCH", rawURL, body) }

// Header adds a request header. Names follow RFC 7230 token rules.
func (s *Step) Header(name, value string) *Step {
	if !headerNameRx.MatchString(name) {
		return s.fail(invalidf("invalid header name %q", name))
	}
	if strings.ContainsAny(value, "\r\n") {
		return s.fail(invalidf("header %q value cannot contain CR or LF characters", name))
	}
	if s.request.Header == nil {
		s.request.Header = make(map[string]string)
	}
	s.request.Header[name] = value
	return s
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func (s *Step) extractor(typ, variable, selector string) *Step {
	if blank(variable) || blank(selector) {
		return s.fail(invalidf("invalid %s extractor: variable %q selector %q", typ, variable, selector))
	}
	s.extract = append(s.extract, ExtractorSpec{VariableName: variable, Selector: selector, Type: typ})
	return s
}

func (s *Step) ExtractFromCookie(variable, cookie string) *Step {
	return s.extractor(ExtractCookie, variable, cookie)
}

func (s *Step) ExtractFromHeader(variable, header string) *Step {
	if !blank(header) && !headerSelectorRx.MatchString(header) {
		return s.fail(invalidf("invalid header selector %q for variable %q", header, variable))
	}
	return s.extractor(ExtractHeader, variable, header)
}

// ExtractFromJSON takes a path relative to the document root, e.g.
// "meta.token" or "data[0].name".
func (s *Step) ExtractFromJSON(variable, path string) *Step {
	selector := "$." + path
	if path == "" {
		return s.fail(invalidf("json path cannot be empty"))
	}
	if !jsonPathRx.MatchString(selector) {
		return s.fail(invalidf("invalid json path %q", path))
	}
	return s.extractor(ExtractJSON, variable, selector)
}

func (s *Step) ExtractFromRegex(variable, pattern string) *Step {
	if _, err := regexp.Compile(pattern); err != nil && !blank(pattern) {
		return s.fail(invalidf("invalid regex %q: %v", pattern, err))
	}
	return s.extractor(ExtractRegex, variable, pattern)
}

// ExtractFromHTML extracts the text (or attribute, when non-empty) of the
// element matched by a css selector.
func (s *Step) ExtractFromHTML(variable, selector, attribute string) *Step {
	n := len(s.extract)
	s.extractor(ExtractHTML, variable, selector)
	if attribute != "" && len(s.extract) > n {
		if blank(attribute) {
			s.extract = s.extract[:n]
			return s.fail(invalidf("html extractor attribute cannot be blank"))
		}
		s.extract[n].Attribute = &attribute
	}
	return s
}

func (s *Step) ValidateStatus(name string, expected int) *Step {
	s.validate = append(s.validate, ValidatorSpec{Name: name, Expected: expected, Type: "status_code"})
	return s
}

func (s *Step) SetThinkTime(d string) *Step {
	if err := checkDuration("think time", d); err != nil {
		return s.fail(err)
	}
	s.thinkTime = d
	return s
}

func (s *Step) build() (StepSpec, error) {
	errs := append([]error(nil), s.errs...)
	if s.request.URL == "" {
		errs = append(errs, invalidf("request url is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return StepSpec{}, err
	}
	req := s.request
	req.Header = maps.Clone(s.request.Header)
	return StepSpec{
		Name:      s.name,
		Request:   req,
		Extract:   append(make([]ExtractorSpec, 0, len(s.extract)), s.extract...),
		Validate:  append(make([]ValidatorSpec, 0, len(s.validate)), s.validate...),
		ThinkTime: s.thinkTime,
	}, nil
}
