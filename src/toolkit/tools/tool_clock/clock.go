package tool_clock

import (
	"context"
	"fmt"
	"time"

	jsonschema "github.com/swaggest/jsonschema-go"

	"github.com/parley-chat/parley/src/toolkit"
)

// Tool name constant
const Name = "get_time"

const description = `Gets the current date and time.

Optionally provide an IANA timezone name such as "Europe/Oslo" or
"America/New_York". Without one, local time is returned.`

// ClockInput represents the parameters for get_time
type ClockInput struct {
	Timezone string `json:"timezone,omitempty" description:"IANA timezone name, e.g. Europe/Oslo"`
}

type clockTool struct {
	schema *jsonschema.Schema
	now    func() time.Time
}

// New creates the get_time tool.
func New() (toolkit.Tool, error) {
	reflector := jsonschema.Reflector{}
	schema, err := reflector.Reflect(ClockInput{})
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %w", err)
	}
	return &clockTool{schema: &schema, now: time.Now}, nil
}

func (t *clockTool) GetName() string { return Name }

func (t *clockTool) GetDescription() string { return description }

func (t *clockTool) GetParameters() *jsonschema.Schema { return t.schema }

func (t *clockTool) Execute(ctx context.Context, input map[string]any) toolkit.Result {
	now := t.now()

	if tz := toolkit.StringField(input, "timezone", ""); tz != "" {
		location, err := time.LoadLocation(tz)
		if err != nil {
			return toolkit.Result{Text: fmt.Sprintf("Unknown timezone %q; expected an IANA name like Europe/Oslo.", tz)}
		}
		now = now.In(location)
	}

	return toolkit.Result{Text: now.Format("Monday, 2 January 2006, 15:04:05 MST")}
}
