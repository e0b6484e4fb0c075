package generate

import (
	"context"
	"fmt"
	"strings"

	"github.com/zulandar/hideout/internal/models"
)

// Demo is an offline Generator that answers from canned Lua templates. It
// lets a deployment run end to end without a provider key.
type Demo struct{}

// Generate implements Generator.
func (Demo) Generate(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("generate: demo: %w", err)
	}
	return &Result{
		Code:        demoCode(req.Prompt, req.ProjectType),
		CommandType: Classify(req.Prompt),
	}, nil
}

func demoCode(prompt, projectType string) string {
	lower := strings.ToLower(prompt)

	if projectType == models.ProjectTypeObby || strings.Contains(lower, "checkpoint") {
		if strings.Contains(lower, "checkpoint") {
			return checkpointLua
		}
		if strings.Contains(lower, "kill") || strings.Contains(lower, "brick") {
			return killBrickLua
		}
	}
	if projectType == models.ProjectTypeTycoon || strings.Contains(lower, "currency") || strings.Contains(lower, "cash") {
		return currencyLua
	}
	if projectType == models.ProjectTypeRacing || strings.Contains(lower, "lap") || strings.Contains(lower, "race") {
		return lapCounterLua
	}

	excerpt := prompt
	if r := []rune(excerpt); len(r) > 50 {
		excerpt = string(r[:50])
	}
	return fmt.Sprintf(placeholderLua, luaComment(prompt), luaString(excerpt))
}

// luaComment keeps a multi-line prompt inside a single comment line.
func luaComment(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r", " "), "\n", " ")
}

// luaString escapes s for use inside a double-quoted Lua string.
func luaString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", `\r`)
	return r.Replace(s)
}

const checkpointLua = `-- Checkpoint System for Obby
-- Location: ServerScriptService

local Players = game:GetService("Players")
local checkpointsFolder = workspace:WaitForChild("Checkpoints")

-- Create leaderstats for each player
Players.PlayerAdded:Connect(function(player)
    local leaderstats = Instance.new("Folder")
    leaderstats.Name = "leaderstats"
    leaderstats.Parent = player

    local stage = Instance.new("IntValue")
    stage.Name = "Stage"
    stage.Value = 1
    stage.Parent = leaderstats
end)

-- Handle checkpoint touches
for _, checkpoint in ipairs(checkpointsFolder:GetChildren()) do
    if checkpoint:IsA("BasePart") then
        checkpoint.Touched:Connect(function(hit)
            local humanoid = hit.Parent:FindFirstChildOfClass("Humanoid")
            if humanoid then
                local player = Players:GetPlayerFromCharacter(hit.Parent)
                if player then
                    local stageNum = tonumber(checkpoint.Name:match("%d+")) or 1
                    local currentStage = player.leaderstats.Stage.Value

                    if stageNum > currentStage then
                        player.leaderstats.Stage.Value = stageNum
                    end
                end
            end
        end)
    end
end

print("Checkpoint system initialized!")`

const killBrickLua = `-- Kill Brick System
-- Location: ServerScriptService

local killBricksFolder = workspace:FindFirstChild("KillBricks")
if not killBricksFolder then
    killBricksFolder = Instance.new("Folder")
    killBricksFolder.Name = "KillBricks"
    killBricksFolder.Parent = workspace
end

for _, brick in ipairs(killBricksFolder:GetChildren()) do
    if brick:IsA("BasePart") then
        brick.BrickColor = BrickColor.new("Really red")
        brick.Touched:Connect(function(hit)
            local humanoid = hit.Parent:FindFirstChildOfClass("Humanoid")
            if humanoid then
                humanoid.Health = 0
            end
        end)
    end
end

print("Kill bricks initialized!")`

const currencyLua = `-- Tycoon Currency System
-- Location: ServerScriptService

local Players = game:GetService("Players")

Players.PlayerAdded:Connect(function(player)
    local leaderstats = Instance.new("Folder")
    leaderstats.Name = "leaderstats"
    leaderstats.Parent = player

    local cash = Instance.new("IntValue")
    cash.Name = "Cash"
    cash.Value = 100 -- Starting cash
    cash.Parent = leaderstats
end)

-- Function to add cash to a player
local function addCash(player, amount)
    local cash = player:FindFirstChild("leaderstats"):FindFirstChild("Cash")
    if cash then
        cash.Value = cash.Value + amount
    end
end

-- Make the function available to other scripts
_G.AddCash = addCash

print("Currency system initialized!")`

const lapCounterLua = `-- Racing Lap Counter System
-- Location: ServerScriptService

local Players = game:GetService("Players")

Players.PlayerAdded:Connect(function(player)
    local leaderstats = Instance.new("Folder")
    leaderstats.Name = "leaderstats"
    leaderstats.Parent = player

    local laps = Instance.new("IntValue")
    laps.Name = "Laps"
    laps.Value = 0
    laps.Parent = leaderstats

    local bestTime = Instance.new("NumberValue")
    bestTime.Name = "BestTime"
    bestTime.Value = 0
    bestTime.Parent = leaderstats
end)

print("Racing leaderstats initialized!")`

const placeholderLua = `-- Generated Lua Code
-- Location: ServerScriptService
-- Prompt: %s

-- Placeholder from the offline demo generator.
-- Configure generation.provider to enable model-backed generation.

local function setup()
    print("Hideout Bot - Code Generator")
    print("Prompt received: %s...")
end

setup()

print("Script loaded successfully!")`
