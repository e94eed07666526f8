package services

import (
	"context"
	"fmt"
	"log"

	"firebase.google.com/go/v4/messaging"
	"github.com/appleboy/go-fcm"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"gopkg.in/gomail.v2"

	"livechat-app/internal/config"
	"livechat-app/internal/models"
)

// Notifier fans a chat event out to the delivery channels that apply:
// email to the shop inbox for messages outside working hours, a push to
// the assigned agent's device, and SMS for urgent conversations. Channels
// without credentials configured are skipped.
type Notifier struct {
	mailer *gomail.Dialer
	fcm    *fcm.Client
	sms    *twilio.RestClient
	cfg    *config.Config
}

func NewNotifier(cfg *config.Config) *Notifier {
	n := &Notifier{cfg: cfg}

	if cfg.SMTPHost != "" {
		n.mailer = gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword)
	}

	if cfg.FCMCredentialsFile != "" {
		client, err := fcm.NewClient(context.Background(), fcm.WithCredentialsFile(cfg.FCMCredentialsFile))
		if err != nil {
			log.Printf("[NOTIFIER] FCM init failed, push disabled: %v", err)
		} else {
			n.fcm = client
		}
	}

	if cfg.TwilioAccountSID != "" {
		n.sms = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.TwilioAccountSID,
			Password: cfg.TwilioAuthToken,
		})
	}

	return n
}

// deliveryPlan lists the channels that apply to one customer message.
type deliveryPlan struct {
	Email bool
	Push  bool
	SMS   bool
}

// planDelivery decides the fan-out: email to the shop inbox only outside
// working hours, push only when the assigned agent registered a device
// token, SMS only for urgent conversations with a phone on file.
func planDelivery(conv *models.Conversation, agent *models.Agent, withinHours bool) deliveryPlan {
	plan := deliveryPlan{Email: !withinHours}
	if agent != nil {
		plan.Push = agent.DeviceToken != ""
		plan.SMS = conv.Priority == models.PriorityUrgent && agent.Phone != ""
	}
	return plan
}

func (n *Notifier) NotifyCustomerMessage(ctx context.Context, conv *models.Conversation, msg *models.ChatMessage, agent *models.Agent, withinHours bool) {
	plan := planDelivery(conv, agent, withinHours)

	if plan.Email {
		if err := n.sendEmail(conv, msg); err != nil {
			log.Printf("[NOTIFIER] Email failed for conversation %s: %v", conv.ID.Hex(), err)
		}
	}

	if plan.Push {
		if err := n.sendPush(ctx, agent.DeviceToken, conv, msg); err != nil {
			log.Printf("[NOTIFIER] Push failed for agent %s: %v", agent.ID.Hex(), err)
		}
	}

	if plan.SMS {
		if err := n.sendSMS(agent.Phone, conv); err != nil {
			log.Printf("[NOTIFIER] SMS failed for agent %s: %v", agent.ID.Hex(), err)
		}
	}
}

func (n *Notifier) sendEmail(conv *models.Conversation, msg *models.ChatMessage) error {
	if n.mailer == nil || n.cfg.SupportInbox == "" {
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.SMTPUser)
	m.SetHeader("To", n.cfg.SupportInbox)
	m.SetHeader("Subject", fmt.Sprintf("[%s] Offline chat message from %s", conv.Shop, conv.CustomerID))
	m.SetBody("text/plain", fmt.Sprintf("Conversation: %s\nSubject: %s\n\n%s", conv.ID.Hex(), conv.Subject, msg.Content))

	return n.mailer.DialAndSend(m)
}

func (n *Notifier) sendPush(ctx context.Context, deviceToken string, conv *models.Conversation, msg *models.ChatMessage) error {
	if n.fcm == nil {
		return nil
	}

	body := msg.Content
	if msg.Type == models.MessageFile {
		body = "Sent a file: " + msg.FileName
	}

	_, err := n.fcm.Send(ctx, &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: "New message from " + conv.CustomerID,
			Body:  body,
		},
		Data: map[string]string{
			"conversation_id": conv.ID.Hex(),
			"shop":            conv.Shop,
		},
	})
	return err
}

func (n *Notifier) sendSMS(phone string, conv *models.Conversation) error {
	if n.sms == nil || n.cfg.TwilioFromNumber == "" {
		return nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(phone)
	params.SetFrom(n.cfg.TwilioFromNumber)
	params.SetBody(fmt.Sprintf("Urgent chat waiting: %s (%s)", conv.Subject, conv.Shop))

	_, err := n.sms.Api.CreateMessage(params)
	return err
}
