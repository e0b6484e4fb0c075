package generate

import (
	"strings"

	"github.com/zulandar/hideout/internal/models"
)

var systemTemplates = map[string]string{
	models.ProjectTypeObby: `You are an expert Roblox Lua developer specializing in obby (obstacle course) games.
Generate production-ready Lua code for Roblox Studio.
Common systems include: checkpoints, kill bricks, stage tracking leaderstats, speed boosts, and respawn mechanics.
Always use best practices: proper error handling, efficient loops, and clear variable names.`,

	models.ProjectTypeRacing: `You are an expert Roblox Lua developer specializing in racing games.
Generate production-ready Lua code for Roblox Studio.
Common systems include: lap counters, best time tracking, vehicle spawning, race start/finish detection.
Always use best practices: proper error handling, efficient loops, and clear variable names.`,

	models.ProjectTypeTycoon: `You are an expert Roblox Lua developer specializing in tycoon games.
Generate production-ready Lua code for Roblox Studio.
Common systems include: currency leaderstats, droppers, collectors, upgrade buttons, data saving.
Always use best practices: proper error handling, efficient loops, and clear variable names.`,

	models.ProjectTypeCustom: `You are an expert Roblox Lua developer.
Generate production-ready Lua code for Roblox Studio.
You can create any type of game system including: DataStores, GUIs, tools, NPCs, combat systems, inventory systems, and more.
Always use best practices: proper error handling, efficient loops, and clear variable names.`,
}

// AssetKeywords are catalog names the model may reference in generated code.
var AssetKeywords = []string{
	"tree", "pine", "rock", "grass", "flower", "house", "shop", "tower", "castle", "bridge",
	"fence", "lamp", "bench", "crate", "barrel", "car", "truck", "boat", "sword", "bow",
	"shield", "spark", "smoke", "explosion", "npc", "enemy", "mountain", "river", "path",
	"coin", "gem", "chest",
}

// systemInstruction is sent as the system message where the provider
// supports one.
const systemInstruction = "You are a Roblox Lua code generator. Always respond with valid JSON containing 'code' and 'commandType' fields."

// SystemTemplate returns the role prompt for a project type. Unknown types
// get the custom template.
func SystemTemplate(projectType string) string {
	if t, ok := systemTemplates[projectType]; ok {
		return t
	}
	return systemTemplates[models.ProjectTypeCustom]
}

// BuildPrompt assembles the full user prompt for one request.
func BuildPrompt(req Request) string {
	var b strings.Builder
	b.WriteString(SystemTemplate(req.ProjectType))
	b.WriteString("\n\nAvailable asset keywords that can be referenced: ")
	b.WriteString(strings.Join(AssetKeywords, ", "))
	b.WriteString("\n\nUser Request: ")
	b.WriteString(strings.TrimSpace(req.Prompt))
	b.WriteString("\n\nGenerate clean, well-commented Lua code that can be directly copied into Roblox Studio.\n")
	b.WriteString("Include comments explaining the code structure and where to place it (ServerScriptService, StarterPlayerScripts, etc).\n")
	b.WriteString(`Respond with valid JSON in this format: { "code": "-- your lua code here", "commandType": "script|terrain|asset|system" }`)
	return b.String()
}

var classifyRules = []struct {
	commandType string
	keywords    []string
}{
	{models.CommandTypeTerrain, []string{"terrain", "landscape", "ground"}},
	{models.CommandTypeAsset, []string{"spawn", "insert", "place", "add model"}},
	{models.CommandTypeSystem, []string{"datastore", "leaderstat", "checkpoint", "system"}},
}

// Classify guesses a command type from the prompt text. Rules are checked
// in order; anything unmatched is a script.
func Classify(prompt string) string {
	lower := strings.ToLower(prompt)
	for _, rule := range classifyRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.commandType
			}
		}
	}
	return models.CommandTypeScript
}
