package models

// PlacementAction tags a successful movement of a single.
type PlacementAction string

const (
	ActionAddedToGroup        PlacementAction = "agregado_a_grupo"
	ActionSimulatedAdd        PlacementAction = "simular_agregar_a_grupo"
	ActionAlreadyInGroupClean PlacementAction = "ya_estaba_en_grupo_borrar_single"
)

// PlacementReason explains why a single stayed unplaced, or why a candidate group was rejected.
type PlacementReason string

const (
	ReasonNoGroupsInSlot     PlacementReason = "no_groups_in_slot"
	ReasonTableNotFound      PlacementReason = "table_not_found"
	ReasonAreaInconsistent   PlacementReason = "area_inconsistente"
	ReasonNoCompatibleGroup  PlacementReason = "no_compatible_group"
	ReasonGroupNoFreeSlot    PlacementReason = "group_no_free_slot"
	ReasonGroupDisappeared   PlacementReason = "grupo_desaparecido"
	ReasonGroupFull          PlacementReason = "group_completo"
	ReasonAreaMismatch       PlacementReason = "area_mismatch"
	ReasonStudentConflict    PlacementReason = "student_conflict"
	ReasonTeacherUnavailable PlacementReason = "teacher_unavailable"
	ReasonSlotMismatch       PlacementReason = "slot_mismatch"
)
