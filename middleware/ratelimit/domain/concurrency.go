package domain

import "context"

// SlotPool limita quantas requisições o gateway deixa chegar juntas na
// aplicação atrás dele.
//
// Acquire bloqueia até conseguir uma vaga ou até o ctx encerrar; ao adquirir,
// devolve um release que deve ser chamado exatamente uma vez. InUse e Cap
// alimentam o /stats do control plane.
type SlotPool interface {
	Acquire(ctx context.Context) (release func(), ok bool)
	InUse() int
	Cap() int
}

// ReasonOverloaded é o motivo registrado nas estatísticas quando não há vaga.
const ReasonOverloaded = "overloaded"
