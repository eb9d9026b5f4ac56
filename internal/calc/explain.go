package calc

import (
	"fmt"
	"io"
	"strings"
)

// Explainer is implemented by calcs that add properties to their explain
// line, such as a constant's value.
type Explainer interface {
	ExplainProps() []string
}

// Explain writes the plan rooted at c, one node per line, children
// indented by four spaces:
//
//	SetConstruction(type=SET<MEMBER<level=[Time].[Year]>>, resultStyle=MUTABLE_LIST)
//	    Constant(type=MEMBER<level=[Time].[Year]>, resultStyle=VALUE, value=[Time].[2024])
func Explain(w io.Writer, c Calc) error {
	return explain(w, c, 0)
}

// ExplainString is Explain into a string.
func ExplainString(c Calc) string {
	var b strings.Builder
	_ = Explain(&b, c)
	return b.String()
}

func explain(w io.Writer, c Calc, depth int) error {
	props := []string{
		"type=" + c.Type().String(),
		"resultStyle=" + c.ResultStyle().String(),
	}
	if e, ok := c.(Explainer); ok {
		props = append(props, e.ExplainProps()...)
	}
	if _, err := fmt.Fprintf(w, "%s%s(%s)\n", strings.Repeat("    ", depth), c.Name(), strings.Join(props, ", ")); err != nil {
		return err
	}
	for _, child := range c.Children() {
		if err := explain(w, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
