package tasks

// DefineTasks registers all available tasks
func DefineTasks() {
	// Register general tasks
	RegisterHandler(LogInfoTask.TaskID(), LogInfoTask.HandleExecution)

	// Register billing tasks
	RegisterHandler(SendRemindersTask.TaskID(), SendRemindersTask.HandleExecution)
}
