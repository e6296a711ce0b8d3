package memegen

import (
	"context"
	"fmt"
	"strings"

	"memeatlas/internal/logger"
	"memeatlas/models"
)

const systemPrompt = "You are an expert in meme creation. Your task is to select the most appropriate " +
	"meme template based on a given thought, and generate witty and humorous text for the meme. " +
	"Ensure that the meme is coherent and funny."

// Completer is a chat-completion backend.
type Completer interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// TemplateCaptioner lists meme templates and renders captions.
type TemplateCaptioner interface {
	Templates(ctx context.Context) ([]models.MemeTemplate, error)
	Caption(ctx context.Context, templateID string, boxes []string) (string, error)
}

type Request struct {
	Thought  string
	Location string
	// TemplateID skips the template choice when set.
	TemplateID string
	// Excluded template IDs are never offered or used.
	Excluded []string
}

type Meme struct {
	URL          string
	TemplateID   string
	TemplateName string
	Explanation  string
	Boxes        []string
}

// Generator runs the two-step prompt: choose a template, then write its boxes.
type Generator struct {
	chat    Completer
	imgflip TemplateCaptioner
}

func NewGenerator(chat Completer, imgflip TemplateCaptioner) *Generator {
	return &Generator{chat: chat, imgflip: imgflip}
}

func (g *Generator) Generate(ctx context.Context, req Request) (*Meme, error) {
	templates, err := g.imgflip.Templates(ctx)
	if err != nil {
		return nil, err
	}
	candidates := exclude(templates, req.Excluded)
	if len(candidates) == 0 {
		return nil, ErrNoTemplates
	}

	var (
		selected    models.MemeTemplate
		explanation string
		messages    []Message
	)

	if req.TemplateID != "" {
		t, ok := findTemplate(candidates, req.TemplateID)
		if !ok {
			return nil, notFoundError(req.TemplateID)
		}
		selected = t
		messages = []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: fmt.Sprintf("The person is at the following location: %s. This is their thought: %s\n\nThe meme template is %s.",
				req.Location, req.Thought, t.Name)},
		}
	} else {
		messages = []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: choicePrompt(req, candidates)},
		}
		answer, err := g.chat.Complete(ctx, messages)
		if err != nil {
			return nil, err
		}
		fields := ParseFields(answer)
		id := fields["meme_id"]
		if id == "" {
			return nil, malformedError("Failed to retrieve meme_id from OpenAI response.")
		}
		t, ok := findTemplate(candidates, id)
		if !ok {
			return nil, notFoundError(id)
		}
		selected = t
		explanation = fields["explanation"]
		messages = append(messages, Message{Role: RoleAssistant, Content: answer})
		logger.L().Debug("meme_template_chosen", "template_id", t.ID, "name", t.Name)
	}

	boxCount := selected.BoxCount
	if boxCount <= 0 {
		boxCount = 2
	}
	messages = append(messages, Message{Role: RoleUser, Content: boxesPrompt(boxCount)})
	answer, err := g.chat.Complete(ctx, messages)
	if err != nil {
		return nil, err
	}
	fields := ParseFields(answer)
	boxes := make([]string, boxCount)
	for i := range boxes {
		boxes[i] = fields[fmt.Sprintf("text%d", i)]
	}

	url, err := g.imgflip.Caption(ctx, selected.ID, boxes)
	if err != nil {
		return nil, err
	}

	return &Meme{
		URL:          url,
		TemplateID:   selected.ID,
		TemplateName: selected.Name,
		Explanation:  explanation,
		Boxes:        boxes,
	}, nil
}

func choicePrompt(req Request, templates []models.MemeTemplate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The person is at the following location: %s. This is their thought: %s\n\n", req.Location, req.Thought)
	b.WriteString("Here is a list of available memes and their respective IDs and box counts:\n")
	for _, t := range templates {
		fmt.Fprintf(&b, "%s (ID: %s, box_count: %d)\n", t.Name, t.ID, t.BoxCount)
	}
	b.WriteString("\nBased on this thought, which meme template would be the best fit?\n")
	b.WriteString("Please provide:\nmeme: <name of meme>\nmeme_id: <id of meme>\nexplanation: <reason for the choice>")
	return b.String()
}

func boxesPrompt(boxCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Great choice! Now, the selected meme requires %d text boxes (from text0 to text%d). ", boxCount, boxCount-1)
	b.WriteString("Please provide the text for each text box, ensuring that the combined texts create a coherent ")
	b.WriteString("and humorous meme that relates to the thought and location:\n")
	for i := 0; i < boxCount; i++ {
		fmt.Fprintf(&b, "text%d: <text for text box %d>\n", i, i)
	}
	return b.String()
}

func exclude(templates []models.MemeTemplate, excluded []string) []models.MemeTemplate {
	if len(excluded) == 0 {
		return templates
	}
	skip := make(map[string]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}
	out := make([]models.MemeTemplate, 0, len(templates))
	for _, t := range templates {
		if _, ok := skip[t.ID]; !ok {
			out = append(out, t)
		}
	}
	return out
}

func findTemplate(templates []models.MemeTemplate, id string) (models.MemeTemplate, bool) {
	for _, t := range templates {
		if t.ID == id {
			return t, true
		}
	}
	return models.MemeTemplate{}, false
}
