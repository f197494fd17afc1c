package quotes

// User-facing reply texts. The bot speaks Portuguese.
const (
	textWelcome = "Olá %s, seja bem-vindo(a) ao bot de frases! 😊✨\n\nEscolha uma opção abaixo para começar:"

	textPhraseWrap = "✅😊 %s ❤️👍"

	textScheduleUsage   = "Uso correto: /agendar [DIA] HH:MM. Onde DIA é a abreviação do dia da semana (dom, seg, ter, qua, qui, sex, sab)."
	textScheduleSaved   = "Agendamento salvo com sucesso! 🎉 Para ver seus agendamentos, use o comando /listar_agendamentos."
	textScheduleBadDay  = "Dia inválido. Use dom, seg, ter, qua, qui, sex ou sab."
	textScheduleBadTime = "Hora inválida. Use o formato HH:MM (por exemplo, 07:30)."
	textScheduleSaveErr = "Erro ao salvar o agendamento. 😔"

	textListHeader = "📅 Seus agendamentos:\n"
	textListEntry  = "%d. Dia: %s, Hora: %s\n"
	textListEmpty  = "Você não tem nenhum agendamento ativo. 😔"

	textRemoveUsage    = "Uso correto: /excluir_agendamento [Número do agendamento]. Use o comando /listar_agendamentos para ver a lista."
	textRemoveOK       = "Agendamento excluído com sucesso! 🎉"
	textRemoveNotFound = "Agendamento não encontrado ou número inválido. Verifique o número do agendamento e tente novamente."
	textRemoveErr      = "Erro ao excluir o agendamento. 😔"

	textRemoveAllOK    = "Todos os seus agendamentos foram excluídos com sucesso! 🎉"
	textRemoveAllEmpty = "Você não tem nenhum agendamento ativo para excluir. 😔"
	textRemoveAllErr   = "Erro ao excluir os agendamentos. 😔"

	textGoodbye = "Obrigado por utilizar o bot de frases! 😄✨ Sempre que precisar, estaremos aqui. Até breve! ❤️"
)
