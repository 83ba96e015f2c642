package storage

// CommandKind enumerates the verbs accepted by ModifyJob/ModifyTask.
type CommandKind int

const (
	CmdPause CommandKind = iota
	CmdResume
	CmdCancel
	CmdRetry
	CmdDelete
	CmdSetPrioritized
	CmdTaskStatusChange
	CmdJobUpdated
)

// Command is a tagged union mirroring QueueCommand. Only the fields
// relevant to Kind are populated.
type Command struct {
	Kind CommandKind

	// CmdSetPrioritized
	Prioritized bool

	// CmdTaskStatusChange
	NewStatus TaskStatus

	// CmdJobUpdated
	JobTitle     string
	JobThumbnail string
	NewTasks     []Task
}

func PauseCommand() Command  { return Command{Kind: CmdPause} }
func ResumeCommand() Command { return Command{Kind: CmdResume} }
func CancelCommand() Command { return Command{Kind: CmdCancel} }
func RetryCommand() Command  { return Command{Kind: CmdRetry} }
func DeleteCommand() Command { return Command{Kind: CmdDelete} }

func SetPrioritizedCommand(v bool) Command {
	return Command{Kind: CmdSetPrioritized, Prioritized: v}
}

func TaskStatusChangeCommand(s TaskStatus) Command {
	return Command{Kind: CmdTaskStatusChange, NewStatus: s}
}

func JobUpdatedCommand(title, thumbnail string, newTasks []Task) Command {
	return Command{Kind: CmdJobUpdated, JobTitle: title, JobThumbnail: thumbnail, NewTasks: newTasks}
}
