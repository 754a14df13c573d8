package bot

import (
	"moodguard/internal/mood"

	"github.com/bwmarrin/discordgo"
)

func commandDefinitions() []*discordgo.ApplicationCommand {
	moodChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(mood.All))
	for _, m := range mood.All {
		moodChoices = append(moodChoices, &discordgo.ApplicationCommandOptionChoice{Name: string(m), Value: string(m)})
	}
	userOption := func(description string) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        "user",
			Description: description,
			Required:    false,
		}
	}
	toggleOption := &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionBoolean,
		Name:        "enabled",
		Description: "on or off; omit to toggle",
		Required:    false,
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "cover",
			Description: "Make an AI voice cover from a YouTube link",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "url",
					Description: "YouTube video link",
					Required:    true,
				},
			},
		},
		{
			Name:        "balance",
			Description: "Show a coin balance",
			Options:     []*discordgo.ApplicationCommandOption{userOption("whose balance")},
		},
		{
			Name:        "daily",
			Description: "Claim your daily coins",
		},
		{
			Name:        "work",
			Description: "Work a shift for coins",
		},
		{
			Name:        "level",
			Description: "Show chat level",
			Options:     []*discordgo.ApplicationCommandOption{userOption("whose level")},
		},
		{
			Name:        "setmood",
			Description: "Change the bot's mood",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "mood",
					Description: "new mood; omit to see the current one",
					Required:    false,
					Choices:     moodChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "feeling",
					Description: "extra flavor for this mood",
					Required:    false,
				},
			},
		},
		{
			Name:        "lockdown",
			Description: "Toggle raid protection",
			Options:     []*discordgo.ApplicationCommandOption{toggleOption},
		},
		{
			Name:        "antinuke",
			Description: "Toggle anti-nuke protection",
			Options:     []*discordgo.ApplicationCommandOption{toggleOption},
		},
		{
			Name:        "cleanchannels",
			Description: "Delete duplicate channels",
		},
		{
			Name:        "status",
			Description: "Show current security status",
		},
		{
			Name:        "game",
			Description: "Save a game to memory",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "game name",
					Required:    true,
				},
			},
		},
		{
			Name:        "clearmemory",
			Description: "Forget chat memory for this server",
		},
		{
			Name:        "upload",
			Description: "Upload a model asset to Roblox",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "file",
					Description: "model file",
					Required:    true,
				},
			},
		},
		{
			Name:        "publish",
			Description: "Publish a place file to Roblox",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionAttachment,
					Name:        "file",
					Description: ".rbxl place file",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "place_id",
					Description: "target place; defaults to the configured one",
					Required:    false,
				},
			},
		},
		{
			Name:        "datastore",
			Description: "Get or set a Roblox datastore entry",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "get or set",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "get", Value: "get"},
						{Name: "set", Value: "set"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "name",
					Description: "datastore name",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "key",
					Description: "entry key",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "value",
					Description: "value to store (set only)",
					Required:    false,
				},
			},
		},
		{
			Name:        "help",
			Description: "List commands",
		},
	}
}

func (b *Bot) registerCommands() error {
	commands := commandDefinitions()

	appID := ""
	if b.session.State != nil && b.session.State.User != nil {
		appID = b.session.State.User.ID
	}
	if appID == "" {
		return nil
	}

	existing, err := b.session.ApplicationCommands(appID, "")
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
				return err
			}
		}
		return nil
	}

	existingByName := make(map[string]*discordgo.ApplicationCommand)
	for _, cmd := range existing {
		existingByName[cmd.Name] = cmd
	}

	desired := make(map[string]struct{})
	for _, cmd := range commands {
		desired[cmd.Name] = struct{}{}
		if current, ok := existingByName[cmd.Name]; ok {
			if _, err := b.session.ApplicationCommandEdit(appID, "", current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, "", cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, "", cmd.ID)
	}

	for _, guild := range b.session.State.Guilds {
		if guild == nil {
			continue
		}
		guildID := guild.ID
		guildCmds, err := b.session.ApplicationCommands(appID, guildID)
		if err != nil {
			continue
		}
		for _, cmd := range guildCmds {
			if _, ok := desired[cmd.Name]; ok {
				continue
			}
			_ = b.session.ApplicationCommandDelete(appID, guildID, cmd.ID)
		}
	}
	return nil
}
