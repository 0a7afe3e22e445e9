package mcprpc

import (
	"fmt"
	"strings"
	"time"

	"fleetd/internal/coordinator"
	"fleetd/internal/tasks"
)

// toolFunc is the shape every fleet_* tool implements: read arguments out
// of the decoded JSON object, mutate or query the coordinator's stores,
// and return a result map. A map with exactly the single key "error" is
// treated as a tool-level failure by the isError derivation in dispatch.go,
// matching original_source/mcp_transport.py's is_error rule.
type toolFunc func(c *coordinator.Coordinator, args map[string]any) (map[string]any, error)

var toolMap = map[string]toolFunc{
	"fleet_bootstrap":          toolBootstrap,
	"fleet_status":             toolStatus,
	"fleet_add_entity":         toolAddEntity,
	"fleet_add_observation":    toolAddObservation,
	"fleet_add_relation":       toolAddRelation,
	"fleet_broadcast":          toolBroadcast,
	"fleet_delete_entity":      toolDeleteEntity,
	"fleet_delete_observation": toolDeleteObservation,
	"fleet_delete_relation":    toolDeleteRelation,
	"fleet_end_session":        toolEndSession,
	"fleet_instances":          toolInstances,
	"fleet_log_session":        toolLogSession,
	"fleet_merge_entities":     toolMergeEntities,
	"fleet_pin":                toolPin,
	"fleet_procedure":          toolProcedure,
	"fleet_query":              toolQuery,
	"fleet_read_identity":      toolReadIdentity,
	"fleet_rename_entity":      toolRenameEntity,
	"fleet_claim_task":         toolClaimTask,
	"fleet_create_task":        toolCreateTask,
	"fleet_update_task":        toolUpdateTask,
	"fleet_list_tasks":         toolListTasks,
}

func str(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

func strSlice(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func errResult(format string, a ...any) (map[string]any, error) {
	return map[string]any{"error": fmt.Sprintf(format, a...)}, nil
}

func resResult(result string) map[string]any {
	return map[string]any{"result": result}
}

func toolBootstrap(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	soul, _ := readIdentityFile(c, "soul")
	pinned, _ := readIdentityFile(c, "pinned")
	recent, _ := readIdentityFile(c, "memory")
	graph := c.KG.Snapshot()
	instances := c.Registry.List()
	available := c.Tasks.Available()

	return map[string]any{
		"soul":            soul,
		"pinned":          pinned,
		"recent":          recent,
		"knowledge_graph": graph,
		"siblings":        instances,
		"tasks":           available,
		"timestamp":       time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func toolStatus(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	board := c.Tasks.Board()
	counts := map[string]int{}
	for status, list := range board {
		counts[string(status)] = len(list)
	}
	return map[string]any{
		"watcher":   c.Watcher.Stats(),
		"workers":   c.Watchdog.Status(),
		"tasks":     counts,
		"instances": len(c.Registry.List()),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func toolAddEntity(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	name := str(args, "name")
	entityType := str(args, "entity_type")
	observations := strSlice(args, "observations")
	e, err := c.KG.AddEntity(name, entityType, observations)
	if err != nil {
		return errResult("%s", err.Error())
	}
	return resResult(fmt.Sprintf("Created or updated entity %q (%s) with %d observations", e.Name, e.EntityType, len(e.Observations))), nil
}

func toolAddObservation(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	entity := str(args, "entity")
	observation := str(args, "observation")
	if err := c.KG.AddObservation(entity, observation); err != nil {
		return errResult("%s", err.Error())
	}
	return resResult(fmt.Sprintf("Added observation to %q: %s", entity, observation)), nil
}

func toolAddRelation(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	from := str(args, "from_entity")
	relType := str(args, "relation_type")
	to := str(args, "to_entity")
	if _, err := c.KG.AddRelation(from, relType, to); err != nil {
		return errResult("%s", err.Error())
	}
	return resResult(fmt.Sprintf("Added relation: %s --[%s]--> %s", from, relType, to)), nil
}

func toolBroadcast(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	activity := str(args, "activity")
	activeFiles := strSlice(args, "active_files")
	instances := c.Registry.List()
	return map[string]any{
		"result":        fmt.Sprintf("Activity noted: %s", activity),
		"active_files":  activeFiles,
		"sibling_count": len(instances),
		"siblings":      instances,
	}, nil
}

func toolDeleteEntity(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	name := str(args, "name")
	if err := c.KG.DeleteEntity(name); err != nil {
		return errResult("%s", err.Error())
	}
	return resResult(fmt.Sprintf("Deleted entity %q", name)), nil
}

func toolDeleteObservation(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	entity := str(args, "entity")
	substring := str(args, "substring")
	removed, err := c.KG.DeleteObservationBySubstring(entity, substring)
	if err != nil {
		return errResult("%s", err.Error())
	}
	return resResult(fmt.Sprintf("Removed %d observation(s) matching %q from %q", removed, substring, entity)), nil
}

func toolDeleteRelation(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	from := str(args, "from_entity")
	relType := str(args, "relation_type")
	to := str(args, "to_entity")
	removed, err := c.KG.DeleteRelation(from, relType, to)
	if err != nil {
		return errResult("%s", err.Error())
	}
	if removed == 0 {
		return errResult("Relation not found: %s --[%s]--> %s", from, relType, to)
	}
	return resResult(fmt.Sprintf("Deleted relation: %s --[%s]--> %s", from, relType, to)), nil
}

func toolEndSession(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	summary := str(args, "summary")
	whatLearned := str(args, "what_learned")
	pinTitle := str(args, "pin_title")

	if err := appendRecentMemory(c, summary, whatLearned); err != nil {
		return errResult("failed to record session: %s", err.Error())
	}
	if appendErr := c.Sessions.Append("end_session", summary); appendErr != nil {
		c.Logger.Warn("failed to append session log entry for end_session")
	}
	if pinTitle != "" {
		if err := appendPinnedMemory(c, pinTitle, str(args, "pin_text"), str(args, "pin_reason")); err != nil {
			return errResult("session recorded but pin failed: %s", err.Error())
		}
	}
	return resResult("Session recorded"), nil
}

func toolInstances(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	instances := c.Registry.List()
	return map[string]any{"count": len(instances), "instances": instances}, nil
}

func toolLogSession(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	action := str(args, "action")
	details := str(args, "details")
	if err := c.Sessions.Append(action, details); err != nil {
		return errResult("%s", err.Error())
	}
	return resResult(fmt.Sprintf("Logged: %s", action)), nil
}

func toolMergeEntities(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	source := str(args, "source")
	target := str(args, "target")
	if err := c.KG.MergeEntities(source, target); err != nil {
		return errResult("%s", err.Error())
	}
	return resResult(fmt.Sprintf("Merged %q into %q", source, target)), nil
}

func toolPin(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	title := str(args, "title")
	text := str(args, "text")
	reason := str(args, "reason")
	if err := appendPinnedMemory(c, title, text, reason); err != nil {
		return errResult("%s", err.Error())
	}
	return resResult(fmt.Sprintf("Pinned %q", title)), nil
}

func toolProcedure(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	topic := str(args, "topic")
	if strings.EqualFold(topic, "list") {
		return map[string]any{"procedures": listProcedures(c.Config.PersistRoot)}, nil
	}
	name, content, found := readProcedure(c.Config.PersistRoot, topic)
	if !found {
		return errResult("No procedure found for %q", topic)
	}
	return map[string]any{"name": name, "content": content}, nil
}

func toolQuery(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	term := str(args, "term")
	result := c.KG.QueryBySubstring(term)
	return map[string]any{
		"term":          term,
		"entities":      result.Entities,
		"relations":     result.Relations,
		"total_matches": len(result.Entities) + len(result.Relations),
	}, nil
}

func toolReadIdentity(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	file := str(args, "file")
	content, err := readIdentityFile(c, file)
	if err != nil {
		return errResult("%s", err.Error())
	}
	return map[string]any{"file": file, "content": content}, nil
}

func toolRenameEntity(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	oldName := str(args, "old_name")
	newName := str(args, "new_name")
	if err := c.KG.RenameEntity(oldName, newName); err != nil {
		return errResult("%s", err.Error())
	}
	return resResult(fmt.Sprintf("Renamed %q to %q", oldName, newName)), nil
}

func toolClaimTask(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	taskID := str(args, "task_id")
	instanceID := str(args, "instance_id")
	t, err := c.Tasks.Claim(taskID, instanceID)
	if err != nil {
		return errResult("%s", err.Error())
	}
	if t == nil {
		return errResult("Cannot claim task %q: not found, already claimed, or scope conflict", taskID)
	}
	return map[string]any{"result": fmt.Sprintf("Claimed task %s", taskID), "task": t}, nil
}

func toolCreateTask(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	priority := tasks.PriorityMedium
	if p := str(args, "priority"); p != "" {
		priority = tasks.Priority(p)
	}
	t := &tasks.Task{
		Title:       str(args, "title"),
		Description: str(args, "description"),
		Project:     str(args, "project"),
		Scope:       tasks.Scope{Tags: strSlice(args, "scope_tags")},
		Priority:    priority,
		CreatedBy:   "mcp-client",
	}
	created, err := c.Tasks.Create(t)
	if err != nil {
		return errResult("%s", err.Error())
	}
	if logErr := c.Sessions.Append("task_create", created.ID); logErr != nil {
		c.Logger.Warn("failed to append session log entry for task_create")
	}
	return map[string]any{"result": fmt.Sprintf("Created task %s", created.ID), "task": created}, nil
}

func toolUpdateTask(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	taskID := str(args, "task_id")
	instanceID := str(args, "instance_id")
	action := str(args, "action")
	message := str(args, "message")
	artifacts := strSlice(args, "artifacts")

	var updated *tasks.Task
	var err error
	switch action {
	case "start":
		updated, err = c.Tasks.Start(taskID, instanceID)
	case "note":
		updated, err = c.Tasks.AddNote(taskID, instanceID, message)
	case "complete":
		updated, err = c.Tasks.Complete(taskID, instanceID, message, artifacts)
	case "fail":
		updated, err = c.Tasks.Fail(taskID, instanceID, message)
	case "release":
		updated, err = c.Tasks.Release(taskID, instanceID, message)
	default:
		return errResult("unknown action %q", action)
	}
	if err != nil {
		return errResult("%s", err.Error())
	}
	if updated == nil {
		return errResult("Cannot %s task %q: not found or not claimed by you", action, taskID)
	}
	if logErr := c.Sessions.Append("task_"+action, taskID); logErr != nil {
		c.Logger.Warn("failed to append session log entry for task update")
	}
	return map[string]any{"result": fmt.Sprintf("Task %s: %s", taskID, action), "task": updated}, nil
}

func toolListTasks(c *coordinator.Coordinator, args map[string]any) (map[string]any, error) {
	status := str(args, "status")
	if status == "all" {
		status = ""
	}
	list := c.Tasks.List(tasks.Status(status))
	return map[string]any{"count": len(list), "tasks": list}, nil
}
