package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/gyaneshwarpardhi/shiftbot/internal/action"
	"github.com/gyaneshwarpardhi/shiftbot/internal/normalize"
)

// panelEmbed explains the four controls and the rules operators follow.
func panelEmbed() *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "🕐 SISTEMA DE CONTROL DE ASISTENCIA",
		Description: "**Registra tus eventos de trabajo con un solo clic:**",
		Color:       0xffd700,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "🟢 LOGIN - Entrada/Inicio de jornada",
				Value: "Presionarlo **apenas empieces tu turno** de trabajo.\nDebe ser lo **primero que hagas** al conectarte.\n⚠️ Si lo haces tarde, el sistema te registrará como **\"Tarde\"**.",
			},
			{
				Name:  "⏸️ BREAK - Inicio de pausa/descanso",
				Value: "Presionarlo **cada vez que te ausentes** del puesto (baño, comer, personal).\n❌ **No usarlo** si vas a estar solo 1-2 minutos.\n✅ **Solo para pausas de más de 5 minutos**.",
			},
			{
				Name:  "▶️ LOGOUT BREAK - Fin de pausa/vuelta al trabajo",
				Value: "Presionarlo **apenas vuelvas** de la pausa.\nEsto marca que estás **nuevamente disponible y activo**.",
			},
			{
				Name:  "🔴 LOGOUT - Salida/Fin de jornada + Reporte de Ventas",
				Value: "Presionarlo **al finalizar** tu turno.\n📋 **Se abrirá un formulario** para reportar ventas del día.\n⚠️ **OBLIGATORIO** completar el reporte de ventas.",
			},
			{
				Name:  "📋 REGLAS IMPORTANTES",
				Value: "• Los botones se deben usar en **orden lógico**: `Login → Break → Logout Break → Logout`\n• **No marcar** un Break sin luego marcar un Logout Break\n• **El Logout incluye** el reporte obligatorio de ventas\n• Usar siempre desde el **mismo dispositivo** y cuenta de Discord asignada\n• **Activa los mensajes directos** para recibir confirmaciones",
			},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text: "📧 Las confirmaciones llegan por DM | ⏰ Hora de Lima",
		},
	}
}

func panelButtons() []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{CustomID: action.IDLogin, Label: "🟢 Login", Style: discordgo.SuccessButton},
			discordgo.Button{CustomID: action.IDBreak, Label: "⏸️ Break", Style: discordgo.PrimaryButton},
			discordgo.Button{CustomID: action.IDLogoutBreak, Label: "▶️ Logout Break", Style: discordgo.SecondaryButton},
			discordgo.Button{CustomID: action.IDLogout, Label: "🔴 Logout", Style: discordgo.DangerButton},
		}},
	}
}

// logoutForm is the sales report modal opened by the logout button.
func logoutForm(formID string) *discordgo.InteractionResponse {
	input := func(id, label, placeholder string, max int) discordgo.MessageComponent {
		return discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    id,
				Label:       label,
				Placeholder: placeholder,
				Style:       discordgo.TextInputShort,
				Required:    true,
				MaxLength:   max,
			},
		}}
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: &discordgo.InteractionResponseData{
			CustomID: formID,
			Title:    "LOGOUT - REPORTE DE VENTAS",
			Components: []discordgo.MessageComponent{
				input(normalize.FieldModel, "MODELO", "Ingresa el modelo trabajado...", 100),
				input(normalize.FieldGross, "Monto Bruto:", "Ejemplo: 150.50", 20),
				input(normalize.FieldFans, "Fans Suscritos:", "Ejemplo: 25", 20),
			},
		},
	}
}
