package mcprpc

import (
	"github.com/google/jsonschema-go/jsonschema"
)

// ToolDescriptor is one tools/list entry. Shaped like the teacher's
// mcp.Tool (internal/mcp/handlers/tools_discovery.go) but local to this
// package since the dual transport here is hand-rolled rather than
// built on the modelcontextprotocol/go-sdk server.
type ToolDescriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

func stringProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func stringArrayProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Items:       &jsonschema.Schema{Type: "string"},
		Description: desc,
	}
}

func emptySchema() *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: map[string]*jsonschema.Schema{}, Required: []string{}}
}

// catalog is the fixed tool set, renamed from the source's howell_
// prefix to fleet_ (§4.6). Task lifecycle tools are renamed
// verb-first (fleet_claim_task, fleet_create_task, fleet_update_task,
// fleet_list_tasks) to match fleet_add_entity's verb-first style.
var catalog = []ToolDescriptor{
	{
		Name:        "fleet_bootstrap",
		Description: "Load this agent's full context at session start: identity, knowledge graph, heartbeat, sibling instances, and tasks.",
		InputSchema: emptySchema(),
	},
	{
		Name:        "fleet_status",
		Description: "Get daemon status: heartbeat, file changes, queue, tasks, instances.",
		InputSchema: emptySchema(),
	},
	{
		Name:        "fleet_add_entity",
		Description: "Create a new entity in the knowledge graph, or add observations to an existing one.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"name":         stringProp("Entity name"),
				"entity_type":  stringProp("Type (Project, Person, Concept, Tool, etc.)"),
				"observations": stringArrayProp("Initial observations"),
			},
			Required: []string{"name", "entity_type"},
		},
	},
	{
		Name:        "fleet_add_observation",
		Description: "Add an observation to an existing entity in the knowledge graph.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"entity":      stringProp("Entity name"),
				"observation": stringProp("Observation text"),
			},
			Required: []string{"entity", "observation"},
		},
	},
	{
		Name:        "fleet_add_relation",
		Description: "Create a directed relation between two entities in the knowledge graph.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"from_entity":   stringProp("Source entity name"),
				"relation_type": stringProp("Relation type (e.g. created, uses, part_of)"),
				"to_entity":     stringProp("Target entity name"),
			},
			Required: []string{"from_entity", "relation_type", "to_entity"},
		},
	},
	{
		Name:        "fleet_broadcast",
		Description: "Broadcast current activity and active files to sibling instances for coordination.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"activity":     stringProp("What you're working on"),
				"active_files": stringArrayProp("Files being edited"),
			},
			Required: []string{"activity"},
		},
	},
	{
		Name:        "fleet_delete_entity",
		Description: "Delete an entity and all its relations from the knowledge graph.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"name": stringProp("Entity name to delete")},
			Required:   []string{"name"},
		},
	},
	{
		Name:        "fleet_delete_observation",
		Description: "Delete observations matching a substring (case-insensitive) from an entity.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"entity":    stringProp("Entity name"),
				"substring": stringProp("Substring to match for removal"),
			},
			Required: []string{"entity", "substring"},
		},
	},
	{
		Name:        "fleet_delete_relation",
		Description: "Delete a specific relation from the knowledge graph.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"from_entity":   stringProp("Source entity"),
				"relation_type": stringProp("Relation type"),
				"to_entity":     stringProp("Target entity"),
			},
			Required: []string{"from_entity", "relation_type", "to_entity"},
		},
	},
	{
		Name:        "fleet_end_session",
		Description: "End-of-session capture: saves what happened, what was learned, and optionally pins a memory.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"summary":      stringProp("What happened this session"),
				"what_learned": stringProp("Key things learned"),
				"pin_title":    stringProp("Title for pinned memory (optional)"),
				"pin_text":     stringProp("Pinned memory text"),
				"pin_reason":   stringProp("Why this should be pinned"),
			},
			Required: []string{"summary"},
		},
	},
	{
		Name:        "fleet_instances",
		Description: "List all active fleet instances (sibling sessions).",
		InputSchema: emptySchema(),
	},
	{
		Name:        "fleet_log_session",
		Description: "Log a session event to the session log.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"action":  stringProp("Action being logged"),
				"details": stringProp("Details"),
			},
			Required: []string{"action"},
		},
	},
	{
		Name:        "fleet_merge_entities",
		Description: "Merge one entity into another: combines observations (deduped), repoints relations, deletes source.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"source": stringProp("Entity to merge FROM (will be deleted)"),
				"target": stringProp("Entity to merge INTO (will be kept)"),
			},
			Required: []string{"source", "target"},
		},
	},
	{
		Name:        "fleet_pin",
		Description: "Pin a core memory: permanent, never evicted.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"title":  stringProp("Memory title"),
				"text":   stringProp("Memory content"),
				"reason": stringProp("Why this matters"),
			},
			Required: []string{"title", "text", "reason"},
		},
	},
	{
		Name:        "fleet_procedure",
		Description: "Look up procedural memory. Pass a topic or 'list' to see all available procedures.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"topic": stringProp("Topic to look up, or 'list'")},
			Required:   []string{"topic"},
		},
	},
	{
		Name:        "fleet_query",
		Description: "Search the knowledge graph for entities, relations, or observations matching a term.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"term": stringProp("Search term")},
			Required:   []string{"term"},
		},
	},
	{
		Name:        "fleet_read_identity",
		Description: "Read a specific identity file (soul, memory, questions, context, projects, pinned, summary).",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"file": {
					Type:        "string",
					Enum:        []any{"soul", "memory", "questions", "context", "projects", "pinned", "summary"},
					Description: "Which identity file to read",
				},
			},
			Required: []string{"file"},
		},
	},
	{
		Name:        "fleet_rename_entity",
		Description: "Rename an entity, updating all relations that reference it.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"old_name": stringProp("Current entity name"),
				"new_name": stringProp("New entity name"),
			},
			Required: []string{"old_name", "new_name"},
		},
	},
	{
		Name:        "fleet_claim_task",
		Description: "Claim a task from the queue for this instance.",
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: map[string]*jsonschema.Schema{"task_id": stringProp("Task ID to claim"), "instance_id": stringProp("Claiming instance ID")},
			Required:   []string{"task_id", "instance_id"},
		},
	},
	{
		Name:        "fleet_create_task",
		Description: "Create a new task in the task queue.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"title":       stringProp("Task title"),
				"description": stringProp("Task description"),
				"priority":    {Type: "string", Enum: []any{"low", "medium", "high", "critical"}},
				"project":     stringProp("Project name"),
				"scope_tags":  stringArrayProp("Scope tags"),
			},
			Required: []string{"title"},
		},
	},
	{
		Name:        "fleet_update_task",
		Description: "Update a claimed task: start, add note, complete, fail, or release.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"task_id":     stringProp("Task ID"),
				"instance_id": stringProp("Instance ID performing the update"),
				"action":      {Type: "string", Enum: []any{"start", "note", "complete", "fail", "release"}, Description: "Action to perform"},
				"message":     stringProp("Note text, result, or failure reason"),
				"artifacts":   stringArrayProp("Files modified (for complete)"),
			},
			Required: []string{"task_id", "action", "instance_id"},
		},
	},
	{
		Name:        "fleet_list_tasks",
		Description: "View the task queue / worker board.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"status": {Type: "string", Enum: []any{"pending", "claimed", "in-progress", "completed", "all"}, Description: "Filter by status"},
			},
			Required: []string{},
		},
	},
}
