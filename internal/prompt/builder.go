// Package prompt builds the research and email generation prompts from a
// profile. The email template can be overridden from a YAML file so the copy
// is editable without a rebuild.
package prompt

import (
	"os"
	"sort"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/outreach-cli/internal/model"
)

// coreFields are handled explicitly by the templates; everything else on a
// profile is surfaced as "additional information".
var coreFields = map[string]struct{}{
	"name": {}, "company": {}, "role": {}, "location": {}, "phone": {},
	"email": {}, "education": {}, "topic": {}, "subtopic": {},
	"research": {}, "draft": {},
}

// templateData is the flattened view of a profile the templates render.
type templateData struct {
	Name           string
	Company        string
	Role           string
	Location       string
	ContactInfo    string
	Education      string
	Topic          string
	Subtopic       string
	Research       string
	AdditionalInfo []string
	HasLocation    bool
	HasEducation   bool
	HasAdditional  bool
}

// Builder renders stage prompts for profiles.
type Builder struct {
	emailTmpl *template.Template
}

// overrideFile is the YAML shape of a custom email template file.
type overrideFile struct {
	EmailTemplate string `yaml:"email_template"`
}

// NewBuilder creates a builder using the default email template.
func NewBuilder() *Builder {
	return &Builder{
		emailTmpl: template.Must(template.New("email").Parse(defaultEmailTemplate)),
	}
}

// NewBuilderFromFile creates a builder with the email template overridden
// from a YAML file ({email_template: "..."}). An empty path returns the
// default builder.
func NewBuilderFromFile(path string) (*Builder, error) {
	if path == "" {
		return NewBuilder(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "prompt: read template file %s", path)
	}

	var of overrideFile
	if err := yaml.Unmarshal(data, &of); err != nil {
		return nil, eris.Wrapf(err, "prompt: parse template file %s", path)
	}
	if strings.TrimSpace(of.EmailTemplate) == "" {
		return nil, eris.Errorf("prompt: template file %s has no email_template", path)
	}

	tmpl, err := template.New("email").Parse(of.EmailTemplate)
	if err != nil {
		return nil, eris.Wrapf(err, "prompt: compile email template from %s", path)
	}
	return &Builder{emailTmpl: tmpl}, nil
}

// Research renders the research prompt for a profile.
func (b *Builder) Research(p model.Profile) string {
	var sb strings.Builder
	d := dataFor(p)

	sb.WriteString("Comprehensive professional research report on " + d.Name + " and " + d.Company + ".\n\n")

	if d.HasAdditional {
		sb.WriteString("ADDITIONAL PROFILE INFORMATION:\n")
		for _, line := range d.AdditionalInfo {
			sb.WriteString(line + "\n")
		}
		sb.WriteString("Incorporate this additional information into your research where relevant.\n\n")
	}

	loc := ""
	if d.HasLocation {
		loc = " based in " + d.Location
	}

	sb.WriteString("PART 1: INDIVIDUAL ANALYSIS\n")
	sb.WriteString("Provide detailed information about " + d.Name + ", " + d.Role + " at " + d.Company + loc + ": ")
	sb.WriteString("professional background and career trajectory, key achievements and areas of expertise, ")
	sb.WriteString("education and certifications, industry presence (talks, publications, associations, LinkedIn activity), ")
	sb.WriteString("and the common pain points of professionals in " + d.Role + " positions.\n\n")

	sb.WriteString("PART 2: COMPANY ANALYSIS\n")
	sb.WriteString("Comprehensive information about " + d.Company + loc + ": industry and primary business focus, ")
	sb.WriteString("size and history, market position and competitors, recent news and product launches (last 1-2 years), ")
	sb.WriteString("known technology stack and recent technology investments, business challenges and growth opportunities, ")
	sb.WriteString("and company culture.\n\n")

	if d.HasLocation {
		sb.WriteString("PART 3: REGIONAL CONTEXT\n")
		sb.WriteString("Local business climate, economic conditions, and region-specific challenges in " + d.Location + ".\n\n")
	}

	sb.WriteString("PART 4: CONNECTION POINTS\n")
	sb.WriteString("Potential needs our services could address, specific pain points, and conversation starters ")
	sb.WriteString("grounded in recent company news or industry trends.\n\n")

	sb.WriteString("Provide factual, well-researched information only. Clearly distinguish verified facts from inferences. Include sources where available.")

	return sb.String()
}

// Email renders the email prompt for a profile. The research field must be
// populated; callers enforce the stage ordering.
func (b *Builder) Email(p model.Profile) (string, error) {
	var sb strings.Builder
	if err := b.emailTmpl.Execute(&sb, dataFor(p)); err != nil {
		return "", eris.Wrap(err, "prompt: render email template")
	}
	return sb.String(), nil
}

// PromptTokens approximates the prompt token count for a stage, using the
// usual ~4 chars/token heuristic. Good enough for upfront estimates.
func (b *Builder) PromptTokens(p model.Profile, stage string) int {
	var text string
	if stage == "research" {
		text = b.Research(p)
	} else {
		text, _ = b.Email(p)
	}
	return len(text) / 4
}

func dataFor(p model.Profile) templateData {
	titler := cases.Title(language.English)

	var contact []string
	if v := strings.TrimSpace(p.Get("phone")); v != "" {
		contact = append(contact, v)
	}
	if v := strings.TrimSpace(p.Get("email")); v != "" {
		contact = append(contact, v)
	}
	contactInfo := strings.Join(contact, ", ")
	if contactInfo == "" {
		contactInfo = "Contact information not available"
	}

	var additional []string
	keys := make([]string, 0, len(p.Fields))
	for k := range p.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, core := coreFields[k]; core {
			continue
		}
		v := strings.TrimSpace(p.Fields[k])
		if v == "" {
			continue
		}
		label := titler.String(strings.ReplaceAll(k, "_", " "))
		additional = append(additional, "- "+label+": "+v)
	}

	topic := strings.TrimSpace(p.Get("topic"))
	if topic == "" {
		topic = "Not specified"
	}
	subtopic := strings.TrimSpace(p.Get("subtopic"))
	if subtopic == "" {
		subtopic = "Not specified"
	}

	location := strings.TrimSpace(p.Get("location"))
	education := strings.TrimSpace(p.Get("education"))

	return templateData{
		Name:           p.Name(),
		Company:        p.Company(),
		Role:           p.Role(),
		Location:       location,
		ContactInfo:    contactInfo,
		Education:      education,
		Topic:          topic,
		Subtopic:       subtopic,
		Research:       p.Research(),
		AdditionalInfo: additional,
		HasLocation:    location != "",
		HasEducation:   education != "",
		HasAdditional:  len(additional) > 0,
	}
}

const defaultEmailTemplate = `You are a top-tier growth representative writing a cold outreach email from a boutique AI consulting firm made up of three top-tier AI engineers. Our mission: bring the same AI power that only big real-estate firms can afford today to mid-sized and smaller developers.

Your goal is to get a meeting with {{.Name}} (a {{.Role}} at {{.Company}}{{if .HasLocation}} in {{.Location}}{{end}}). You also know the following about them:
- Contact: {{.ContactInfo}}
{{if .HasEducation}}- Education: {{.Education}}
{{end}}- Topic: {{.Topic}} / {{.Subtopic}}
- Research insights: {{.Research}}
{{if .HasAdditional}}- Additional Information:
{{range .AdditionalInfo}}  {{.}}
{{end}}{{end}}
Make it personal and show that you have done your homework. Be warm and concise, with a touch of humour and persuasion. Do not make any generic statements, such as 'Your role as a {{.Role}} at {{.Company}} is important to us', or 'I hope this email finds you well'. Don't be overly salesy or sycophantic. Do not use em-dashes, or '-'.

Some things that we can do is automate some of their repetitive tasks.

<RULE> The body of the email should be no more than 150 words. </RULE>

Lastly, make sure the signature is the following:

Evan Brooks
Sr. Engineer, DevelopIQ
evan@developiq.com
561.789.8905
www.developiq.com
`
