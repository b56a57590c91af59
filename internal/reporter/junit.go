package reporter

import (
	"encoding/xml"
	"fmt"
	"io"
	"time"

	"github.com/eddiedunn/moltest/internal/api"
)

// junitSuiteName is the single suite all test cases are grouped under.
const junitSuiteName = "moltest"

type junitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Errors   int              `xml:"errors,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      string          `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	Cases     []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitProblem `xml:"failure,omitempty"`
	Error     *junitProblem `xml:"error,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
}

type junitProblem struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr,omitempty"`
}

// WriteJUnit writes the CI test report.
func WriteJUnit(w io.Writer, r Result) error {
	s := r.Summary()
	duration := formatSeconds(r.Duration, 3)

	suite := junitTestSuite{
		Name:      junitSuiteName,
		Tests:     s.Total,
		Failures:  s.Failed,
		Errors:    s.Errored,
		Skipped:   s.Skipped,
		Time:      duration,
		Timestamp: r.Timestamp.UTC().Format(time.RFC3339),
		Cases:     make([]junitTestCase, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		suite.Cases = append(suite.Cases, junitCase(o))
	}

	doc := junitTestSuites{
		Name:     junitSuiteName,
		Tests:    s.Total,
		Failures: s.Failed,
		Errors:   s.Errored,
		Skipped:  s.Skipped,
		Time:     duration,
		Suites:   []junitTestSuite{suite},
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode JUnit report: %w", err)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func junitCase(o api.Outcome) junitTestCase {
	classname := o.Role
	if classname == "" {
		classname = junitSuiteName
	}
	tc := junitTestCase{
		Name:      o.ID,
		Classname: classname,
		Time:      formatSeconds(o.Duration, 3),
	}

	detail := outcomeDetail(o)
	switch o.Status {
	case api.StatusFailed:
		tc.Failure = &junitProblem{Message: detail, Body: o.Output}
	case api.StatusError:
		tc.Error = &junitProblem{Message: detail, Body: o.Output}
	case api.StatusSkipped:
		tc.Skipped = &junitSkipped{Message: o.Reason}
	}
	return tc
}
