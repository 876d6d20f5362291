package bot

import "github.com/bwmarrin/discordgo"

func (b *Bot) commandDefinitions() []*discordgo.ApplicationCommand {
	tierChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(b.cfg.Tiers))
	for _, tier := range b.cfg.Tiers {
		tierChoices = append(tierChoices, &discordgo.ApplicationCommandOptionChoice{Name: tier.Name, Value: tier.Name})
	}

	categoryChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(b.cfg.Tickets.Categories))
	for _, category := range b.cfg.Tickets.Categories {
		categoryChoices = append(categoryChoices, &discordgo.ApplicationCommandOptionChoice{Name: category.Name, Value: category.Name})
	}

	return []*discordgo.ApplicationCommand{
		{
			Name:        "ticket-panel",
			Description: "Post the ticket creation panel in this channel",
		},
		{
			Name:        "new-ticket",
			Description: "Open a ticket without the panel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "category",
					Description: "ticket category",
					Required:    true,
					Choices:     categoryChoices,
				},
			},
		},
		{
			Name:        "ticket",
			Description: "Manage the current ticket channel",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "what to do with this ticket",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "close", Value: "close"},
						{Name: "reopen", Value: "reopen"},
						{Name: "claim", Value: "claim"},
						{Name: "delete", Value: "delete"},
						{Name: "lock", Value: "lock"},
						{Name: "unlock", Value: "unlock"},
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "reason for claim or delete",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to add to or remove from the ticket",
					Required:    false,
				},
			},
		},
		{
			Name:        "vote",
			Description: "Open a promotion vote",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "tier",
					Description: "tier to vote the user into",
					Required:    true,
					Choices:     tierChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "candidate",
					Required:    true,
				},
			},
		},
		{
			Name:        "myvote",
			Description: "Show your vote on a user's active poll",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "tier",
					Description: "tier of the poll",
					Required:    true,
					Choices:     tierChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "poll target",
					Required:    true,
				},
			},
		},
		{
			Name:        "removal",
			Description: "Open a removal poll",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "tier",
					Description: "tier to remove the user from",
					Required:    true,
					Choices:     tierChoices,
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to remove",
					Required:    true,
				},
			},
		},
		{
			Name:        "upgrade",
			Description: "Grant a tier role you manage",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "member to upgrade",
					Required:    true,
				},
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "role",
					Description:  "role to grant",
					Required:     true,
					Autocomplete: true,
				},
			},
		},
		{
			Name:        "premium",
			Description: "Manage premium membership",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "action",
					Description: "add, remove, or list",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "add", Value: "add"},
						{Name: "remove", Value: "remove"},
						{Name: "list", Value: "list"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "target member",
					Required:    false,
				},
			},
		},
		{
			Name:        "blacklist",
			Description: "Blacklist a user from translations",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "user to blacklist",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "duration",
					Description: "e.g. 30m, 2h, 1d",
					Required:    false,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "reason",
					Description: "why",
					Required:    false,
				},
			},
		},
		{
			Name:        "unblacklist",
			Description: "Remove a user from the translation blacklist",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "user to unblacklist",
					Required:    true,
				},
			},
		},
		{
			Name:        "staff-list",
			Description: "List members per tier",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "sort",
					Description: "ordering of the roster",
					Required:    false,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "tier", Value: "tier"},
						{Name: "name", Value: "name"},
					},
				},
			},
		},
		{
			Name:        "voteview",
			Description: "Browse promotion poll results",
		},
		{
			Name:        "announce",
			Description: "Post a staff announcement",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "type",
					Description: "announcement kind",
					Required:    true,
					Choices: []*discordgo.ApplicationCommandOptionChoice{
						{Name: "join", Value: "join"},
						{Name: "departure", Value: "departure"},
						{Name: "return", Value: "return"},
						{Name: "promotion", Value: "promotion"},
					},
				},
				{
					Type:        discordgo.ApplicationCommandOptionUser,
					Name:        "user",
					Description: "who the announcement is about",
					Required:    true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "detail",
					Description: "extra detail, e.g. the new position",
					Required:    false,
				},
			},
		},
		{
			Name:        "stats",
			Description: "Show bot activity and runtime stats",
		},
	}
}

func (b *Bot) registerCommands() error {
	commands := b.commandDefinitions()
	appID := b.session.State.User.ID
	guildID := b.cfg.GuildID

	existing, err := b.session.ApplicationCommands(appID, guildID)
	if err != nil {
		for _, cmd := range commands {
			if _, err := b.session.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
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
			if _, err := b.session.ApplicationCommandEdit(appID, guildID, current.ID, cmd); err != nil {
				return err
			}
			continue
		}
		if _, err := b.session.ApplicationCommandCreate(appID, guildID, cmd); err != nil {
			return err
		}
	}

	for _, cmd := range existing {
		if _, ok := desired[cmd.Name]; ok {
			continue
		}
		_ = b.session.ApplicationCommandDelete(appID, guildID, cmd.ID)
	}
	return nil
}
